package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/prayanswer/internal/models"
)

func insertAttachments(tx *sql.Tx, prayerID string, atts []models.Attachment) error {
	if len(atts) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO attachments
		(id, prayer_id, file_name, original_name, type, file_size_bytes, sort_order, ocr_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range atts {
		id := a.ID
		if id == "" {
			id = uuid.New().String()
		}
		var ocr interface{}
		if a.OCRText != nil {
			ocr = *a.OCRText
		}
		if _, err := stmt.Exec(id, prayerID, a.FileName, a.OriginalName, string(a.Type), a.FileSizeBytes,
			a.Order, ocr, formatTime(a.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert attachment %s: %w", a.FileName, err)
		}
	}
	return nil
}

// attachmentsFor loads the attachments of the given prayers keyed by prayer id.
func (s *Store) attachmentsFor(prayerIDs []string) (map[string][]models.Attachment, error) {
	out := make(map[string][]models.Attachment, len(prayerIDs))
	if len(prayerIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(prayerIDs)), ",")
	args := make([]interface{}, len(prayerIDs))
	for i, id := range prayerIDs {
		args[i] = id
	}

	rows, err := s.db.Query(`SELECT id, prayer_id, file_name, original_name, type, file_size_bytes, sort_order, ocr_text, created_at
		FROM attachments WHERE prayer_id IN (`+placeholders+`) ORDER BY sort_order, created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a         models.Attachment
			typ       string
			ocr       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.PrayerID, &a.FileName, &a.OriginalName, &typ, &a.FileSizeBytes,
			&a.Order, &ocr, &createdAt); err != nil {
			return nil, err
		}
		a.Type = models.AttachmentType(typ)
		if ocr.Valid {
			text := ocr.String
			a.OCRText = &text
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing attachment created_at: %w", err)
		}
		out[a.PrayerID] = append(out[a.PrayerID], a)
	}
	return out, rows.Err()
}
