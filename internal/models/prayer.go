package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/prayanswer/internal/constants"
)

var (
	ErrContentRequired = errors.New("prayer content is required")
	ErrContentTooLong  = fmt.Errorf("prayer content exceeds %d characters", constants.MaxContentLength)
	ErrTitleTooLong    = fmt.Errorf("prayer title exceeds %d characters", constants.MaxTitleLength)
	ErrInvalidCategory = errors.New("invalid prayer category")
	ErrInvalidStorage  = errors.New("invalid prayer storage")
)

// Storage is the lifecycle state of a prayer. The raw values are persisted.
type Storage string

const (
	StorageWaiting     Storage = "wait"
	StorageAnswered    Storage = "yes"
	StorageNotAnswered Storage = "no"
)

// AllStorages lists every storage in display order
var AllStorages = []Storage{StorageWaiting, StorageAnswered, StorageNotAnswered}

func (s Storage) Valid() bool {
	switch s {
	case StorageWaiting, StorageAnswered, StorageNotAnswered:
		return true
	}
	return false
}

// ParseStorage accepts both raw values and the english names used on the command line.
func ParseStorage(s string) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wait", "waiting":
		return StorageWaiting, nil
	case "yes", "answered":
		return StorageAnswered, nil
	case "no", "not-answered", "not_answered", "notanswered":
		return StorageNotAnswered, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStorage, s)
}

type Category string

const (
	CategoryPersonal     Category = "personal"
	CategoryFamily       Category = "family"
	CategoryHealth       Category = "health"
	CategoryWork         Category = "work"
	CategoryRelationship Category = "relationship"
	CategoryThanksgiving Category = "thanksgiving"
	CategoryVision       Category = "vision"
	CategoryOther        Category = "other"
)

var AllCategories = []Category{
	CategoryPersonal,
	CategoryFamily,
	CategoryHealth,
	CategoryWork,
	CategoryRelationship,
	CategoryThanksgiving,
	CategoryVision,
	CategoryOther,
}

func (c Category) Valid() bool {
	_, ok := categoryMeta[c]
	return ok
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

type Prayer struct {
	ID                   string               `json:"id"`
	Title                string               `json:"title"`
	Content              string               `json:"content"`
	Category             Category             `json:"category"`
	Target               string               `json:"target"`
	Storage              Storage              `json:"storage"`
	IsFavorite           bool                 `json:"is_favorite"`
	CreatedAt            time.Time            `json:"created_at"`
	ModifiedAt           *time.Time           `json:"modified_at,omitempty"`
	MovedAt              *time.Time           `json:"moved_at,omitempty"`
	TargetDate           *time.Time           `json:"target_date,omitempty"` // date only, local midnight
	NotificationEnabled  bool                 `json:"notification_enabled"`
	NotificationSettings NotificationSettings `json:"notification_settings"`
	CalendarEventID      string               `json:"calendar_event_id,omitempty"`
	Attachments          []Attachment         `json:"attachments,omitempty"`
	ImageFileName        string               `json:"image_file_name,omitempty"` // legacy single image
}

// GenerateTitle builds the title shown for a prayer. Titles are never typed by the user.
func GenerateTitle(target string, category Category) string {
	target = strings.TrimSpace(target)
	name := CategoryMeta(category).Name
	if target == "" {
		return name + " 기도"
	}
	return fmt.Sprintf("%s의 %s 기도", target, name)
}

// ValidateContent checks the user-entered content before any commit.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > constants.MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

func (p *Prayer) Validate() error {
	if err := ValidateContent(p.Content); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.Title) > constants.MaxTitleLength {
		return ErrTitleTooLong
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, p.Category)
	}
	if !p.Storage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStorage, p.Storage)
	}
	return nil
}

// DisplayTarget returns the target, or "나" when the prayer is for oneself.
func (p *Prayer) DisplayTarget() string {
	if strings.TrimSpace(p.Target) == "" {
		return "나"
	}
	return p.Target
}

// HasAttachments reports whether the prayer has attachments or a legacy image.
func (p *Prayer) HasAttachments() bool {
	return len(p.Attachments) > 0 || p.ImageFileName != ""
}

// SortedAttachments returns the attachments ordered by Order.
func (p *Prayer) SortedAttachments() []Attachment {
	out := make([]Attachment, len(p.Attachments))
	copy(out, p.Attachments)
	SortAttachments(out)
	return out
}

// DaysUntilTarget returns the number of calendar days from today to the target date.
// The second return value is false when no target date is set.
func (p *Prayer) DaysUntilTarget(now time.Time) (int, bool) {
	if p.TargetDate == nil {
		return 0, false
	}
	return DaysBetween(now, *p.TargetDate), true
}

// DDayLabel formats the countdown as "D-3", "D-Day" or "D+2".
func (p *Prayer) DDayLabel(now time.Time) string {
	days, ok := p.DaysUntilTarget(now)
	if !ok {
		return ""
	}
	switch {
	case days == 0:
		return "D-Day"
	case days > 0:
		return fmt.Sprintf("D-%d", days)
	default:
		return fmt.Sprintf("D+%d", -days)
	}
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from a's date to b's date. Each side uses its own
// calendar date, so a target date stored as a plain date compares by day.
func DaysBetween(a, b time.Time) int {
	from := StartOfDay(a)
	y, m, d := b.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, a.Location())
	// Round to absorb DST shifts
	return int(math.Round(to.Sub(from).Hours() / 24))
}
