package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/permission"
	"github.com/julianstephens/prayanswer/internal/storage"
)

// Center is the local notification substrate: requests are kept in the
// pending_notifications table until the Dispatcher delivers them.
type Center struct {
	store storage.NotificationStore
	gate  *permission.Gate
	limit int
	now   func() time.Time
}

func NewCenter(store storage.NotificationStore, gate *permission.Gate) *Center {
	return &Center{
		store: store,
		gate:  gate,
		limit: constants.MaxPendingNotifications,
		now:   time.Now,
	}
}

func (c *Center) RequestAuthorization() (bool, error) {
	return c.gate.Request()
}

// Schedule adds or replaces a request by identifier and reports whether it was
// kept. Once the pending limit is reached new identifiers are dropped.
func (c *Center) Schedule(identifier string, fireAt time.Time, title, body string) (bool, error) {
	pending, err := c.store.ListPendingNotifications()
	if err != nil {
		return false, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	if len(pending) >= c.limit && !containsIdentifier(pending, identifier) {
		logger.Warn("Pending notification limit reached, dropping request", "identifier", identifier, "limit", c.limit)
		return false, nil
	}

	err = c.store.SavePendingNotification(models.PendingNotification{
		Identifier: identifier,
		FireAt:     fireAt,
		Title:      title,
		Body:       body,
		CreatedAt:  c.now(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Center) Cancel(identifiers []string) error {
	return c.store.DeletePendingNotifications(identifiers)
}

func (c *Center) CancelAll() error {
	return c.store.DeleteAllPendingNotifications()
}

func (c *Center) Pending() ([]models.PendingNotification, error) {
	return c.store.ListPendingNotifications()
}

// PendingWithPrefix lists pending identifiers that start with prefix.
func (c *Center) PendingWithPrefix(prefix string) ([]string, error) {
	pending, err := c.store.ListPendingNotifications()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, n := range pending {
		if strings.HasPrefix(n.Identifier, prefix) {
			ids = append(ids, n.Identifier)
		}
	}
	return ids, nil
}

func containsIdentifier(pending []models.PendingNotification, identifier string) bool {
	for _, n := range pending {
		if n.Identifier == identifier {
			return true
		}
	}
	return false
}
