package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/models"
)

// SavePendingNotification inserts or replaces by identifier.
func (s *Store) SavePendingNotification(n models.PendingNotification) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO pending_notifications (identifier, fire_at, title, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.Identifier, formatTime(n.FireAt), n.Title, n.Body, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save pending notification: %w", err)
	}
	return nil
}

func (s *Store) DeletePendingNotifications(identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identifiers)), ",")
	args := make([]interface{}, len(identifiers))
	for i, id := range identifiers {
		args[i] = id
	}
	_, err := s.db.Exec("DELETE FROM pending_notifications WHERE identifier IN ("+placeholders+")", args...)
	return err
}

func (s *Store) DeleteAllPendingNotifications() error {
	_, err := s.db.Exec("DELETE FROM pending_notifications")
	return err
}

func (s *Store) ListPendingNotifications() ([]models.PendingNotification, error) {
	rows, err := s.db.Query("SELECT identifier, fire_at, title, body, created_at FROM pending_notifications ORDER BY fire_at, identifier")
	if err != nil {
		return nil, err
	}
	return scanPending(rows)
}

// DuePendingNotifications returns the notifications whose fire time is at or before now.
func (s *Store) DuePendingNotifications(now time.Time) ([]models.PendingNotification, error) {
	rows, err := s.db.Query(`SELECT identifier, fire_at, title, body, created_at FROM pending_notifications
		WHERE fire_at <= ? ORDER BY fire_at, identifier`, formatTime(now))
	if err != nil {
		return nil, err
	}
	return scanPending(rows)
}

func scanPending(rows *sql.Rows) ([]models.PendingNotification, error) {
	defer rows.Close()

	var out []models.PendingNotification
	for rows.Next() {
		var (
			n                 models.PendingNotification
			fireAt, createdAt string
		)
		if err := rows.Scan(&n.Identifier, &fireAt, &n.Title, &n.Body, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if n.FireAt, err = parseTime(fireAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
