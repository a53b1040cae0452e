package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/storage"
)

const prayerColumns = `id, title, content, category, target, storage, is_favorite, created_at,
	modified_at, moved_at, target_date, notification_enabled, notification_settings,
	calendar_event_id, image_file_name`

func (s *Store) AddPrayer(p models.Prayer) error {
	settings, err := json.Marshal(p.NotificationSettings)
	if err != nil {
		return fmt.Errorf("failed to encode notification settings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO prayers (`+prayerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, string(p.Category), p.Target, string(p.Storage), boolToInt(p.IsFavorite),
		formatTime(p.CreatedAt), formatTimePtr(p.ModifiedAt), formatTimePtr(p.MovedAt), formatDatePtr(p.TargetDate),
		boolToInt(p.NotificationEnabled), string(settings), p.CalendarEventID, p.ImageFileName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prayer: %w", err)
	}

	if err := insertAttachments(tx, p.ID, p.Attachments); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePrayer rewrites the prayer row and replaces its attachment rows so that
// the stored set and order match p.Attachments.
func (s *Store) UpdatePrayer(p models.Prayer) error {
	settings, err := json.Marshal(p.NotificationSettings)
	if err != nil {
		return fmt.Errorf("failed to encode notification settings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE prayers SET title = ?, content = ?, category = ?, target = ?, storage = ?,
		is_favorite = ?, modified_at = ?, moved_at = ?, target_date = ?, notification_enabled = ?,
		notification_settings = ?, calendar_event_id = ?, image_file_name = ?
		WHERE id = ?`,
		p.Title, p.Content, string(p.Category), p.Target, string(p.Storage), boolToInt(p.IsFavorite),
		formatTimePtr(p.ModifiedAt), formatTimePtr(p.MovedAt), formatDatePtr(p.TargetDate),
		boolToInt(p.NotificationEnabled), string(settings), p.CalendarEventID, p.ImageFileName, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update prayer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("prayer %s: %w", p.ID, storage.ErrNotFound)
	}

	if _, err := tx.Exec("DELETE FROM attachments WHERE prayer_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	if err := insertAttachments(tx, p.ID, p.Attachments); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetPrayer(id string) (models.Prayer, error) {
	row := s.db.QueryRow("SELECT "+prayerColumns+" FROM prayers WHERE id = ?", id)
	p, err := scanPrayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Prayer{}, fmt.Errorf("prayer %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Prayer{}, err
	}

	atts, err := s.attachmentsFor([]string{id})
	if err != nil {
		return models.Prayer{}, err
	}
	p.Attachments = atts[id]
	return p, nil
}

// DeletePrayer removes the prayer. Attachment rows cascade.
func (s *Store) DeletePrayer(id string) error {
	res, err := s.db.Exec("DELETE FROM prayers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete prayer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("prayer %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPrayers(filter storage.PrayerFilter) ([]models.Prayer, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Storage != nil {
		where = append(where, "storage = ?")
		args = append(args, string(*filter.Storage))
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.Favorite != nil {
		where = append(where, "is_favorite = ?")
		args = append(args, boolToInt(*filter.Favorite))
	}

	query := "SELECT " + prayerColumns + " FROM prayers"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		prayers []models.Prayer
		ids     []string
	)
	for rows.Next() {
		p, err := scanPrayer(rows)
		if err != nil {
			return nil, err
		}
		prayers = append(prayers, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(prayers) == 0 {
		return prayers, nil
	}

	atts, err := s.attachmentsFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range prayers {
		prayers[i].Attachments = atts[prayers[i].ID]
	}
	return prayers, nil
}

// ListTargets returns the distinct non-empty targets, alphabetically.
func (s *Store) ListTargets() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT target FROM prayers WHERE target != '' ORDER BY target")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrayer(row scanner) (models.Prayer, error) {
	var (
		p                               models.Prayer
		category, storageVal, createdAt string
		modifiedAt, movedAt, targetDate sql.NullString
		isFavorite, notificationEnabled int
		settingsJSON                    string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Content, &category, &p.Target, &storageVal, &isFavorite, &createdAt,
		&modifiedAt, &movedAt, &targetDate, &notificationEnabled, &settingsJSON, &p.CalendarEventID, &p.ImageFileName)
	if err != nil {
		return models.Prayer{}, err
	}

	p.Category = models.Category(category)
	p.Storage = models.Storage(storageVal)
	p.IsFavorite = isFavorite != 0
	p.NotificationEnabled = notificationEnabled != 0

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Prayer{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.ModifiedAt, err = parseTimePtr(modifiedAt); err != nil {
		return models.Prayer{}, fmt.Errorf("parsing modified_at: %w", err)
	}
	if p.MovedAt, err = parseTimePtr(movedAt); err != nil {
		return models.Prayer{}, fmt.Errorf("parsing moved_at: %w", err)
	}
	if p.TargetDate, err = parseDatePtr(targetDate); err != nil {
		return models.Prayer{}, fmt.Errorf("parsing target_date: %w", err)
	}

	p.NotificationSettings = models.DefaultNotificationSettings()
	if settingsJSON != "" && settingsJSON != "{}" {
		if err := json.Unmarshal([]byte(settingsJSON), &p.NotificationSettings); err != nil {
			return models.Prayer{}, fmt.Errorf("parsing notification_settings: %w", err)
		}
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatDatePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDatePtr reads a date column as local midnight.
func parseDatePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, ns.String, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
