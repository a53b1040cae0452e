package storage

import (
	"errors"
	"time"

	"github.com/julianstephens/prayanswer/internal/models"
)

var ErrNotFound = errors.New("not found")

// PrayerFilter selects prayers. Nil fields match everything.
type PrayerFilter struct {
	Storage  *models.Storage
	Category *models.Category
	Favorite *bool
}

// PrayerStore persists prayers together with their attachments. Lists are
// sorted by creation time, newest first.
type PrayerStore interface {
	AddPrayer(p models.Prayer) error
	UpdatePrayer(p models.Prayer) error
	GetPrayer(id string) (models.Prayer, error)
	DeletePrayer(id string) error
	ListPrayers(filter PrayerFilter) ([]models.Prayer, error)
	ListTargets() ([]string, error)
}

// SettingsStore is a small key/value store for runtime preferences and flags.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

// NotificationStore holds pending local notifications until they are delivered.
type NotificationStore interface {
	SavePendingNotification(n models.PendingNotification) error
	DeletePendingNotifications(identifiers []string) error
	DeleteAllPendingNotifications() error
	ListPendingNotifications() ([]models.PendingNotification, error)
	DuePendingNotifications(now time.Time) ([]models.PendingNotification, error)
}

type Provider interface {
	Init() error
	Load() error
	Close() error
	GetPath() string

	PrayerStore
	SettingsStore
	NotificationStore
}
