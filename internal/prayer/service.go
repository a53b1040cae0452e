// Package prayer implements the prayer lifecycle: creation, edits, storage
// moves, favorites and deletion, with reminders, calendar entries and the
// widget snapshot kept in step with every committed change.
package prayer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/prayanswer/internal/calendar"
	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/storage"
)

// Reminders schedules and cancels the local notifications of a prayer.
type Reminders interface {
	Schedule(p models.Prayer) (int, error)
	Cancel(prayerID string) error
}

// Calendar holds the optional all-day D-Day entries.
type Calendar interface {
	AddEvent(title, notes string, day time.Time, alarmOffsets []int) (string, error)
	RemoveEvent(id string) error
}

// Widget is signalled after every committed change. Refresh must not block.
type Widget interface {
	Refresh()
}

// Files deletes attachment files.
type Files interface {
	Delete(fileName string) error
}

// Fields are the user-editable parts of a prayer.
type Fields struct {
	Content              string
	Category             models.Category
	Target               string
	TargetDate           *time.Time
	NotificationEnabled  bool
	NotificationSettings *models.NotificationSettings
	AddToCalendar        bool
}

// Draft is a new prayer with the attachments saved while composing it.
type Draft struct {
	Fields
	Attachments []models.Attachment
}

// SyncError is returned next to a committed record when reminders or the
// calendar entry could not be brought in line with it.
type SyncError struct {
	Reminders error
	Calendar  error
}

func (e *SyncError) Error() string {
	var parts []string
	if e.Reminders != nil {
		parts = append(parts, "reminders: "+e.Reminders.Error())
	}
	if e.Calendar != nil {
		parts = append(parts, "calendar: "+e.Calendar.Error())
	}
	return "prayer saved, but " + strings.Join(parts, "; ")
}

func (e *SyncError) Unwrap() []error {
	var errs []error
	if e.Reminders != nil {
		errs = append(errs, e.Reminders)
	}
	if e.Calendar != nil {
		errs = append(errs, e.Calendar)
	}
	return errs
}

func (e *SyncError) orNil() error {
	if e.Reminders == nil && e.Calendar == nil {
		return nil
	}
	return e
}

// Options wires the collaborators. Any of them may be nil.
type Options struct {
	Reminders Reminders
	Calendar  Calendar
	Widget    Widget
	Files     Files
	Now       func() time.Time
}

type Service struct {
	store     storage.PrayerStore
	reminders Reminders
	calendar  Calendar
	widget    Widget
	files     Files
	now       func() time.Time
	newID     func() string
	locks     keyedMutex
}

func NewService(store storage.PrayerStore, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		reminders: opts.Reminders,
		calendar:  opts.Calendar,
		widget:    opts.Widget,
		files:     opts.Files,
		now:       now,
		newID:     uuid.NewString,
	}
}

// Create commits a new waiting prayer. A *SyncError means the prayer was saved
// but reminders or the calendar entry failed.
func (s *Service) Create(d Draft) (models.Prayer, error) {
	now := s.now()
	p := models.Prayer{
		ID:        s.newID(),
		Storage:   models.StorageWaiting,
		CreatedAt: now,
	}
	if err := s.apply(&p, d.Fields); err != nil {
		return models.Prayer{}, err
	}

	atts := make([]models.Attachment, len(d.Attachments))
	copy(atts, d.Attachments)
	models.SortAttachments(atts)
	for i := range atts {
		s.adoptAttachment(&atts[i], p.ID, i, now)
	}
	p.Attachments = atts

	var side SyncError
	if d.AddToCalendar {
		side.Calendar = s.addCalendarEvent(&p)
	}

	if err := s.store.AddPrayer(p); err != nil {
		s.removeCalendarEvent(p.CalendarEventID)
		return models.Prayer{}, fmt.Errorf("failed to save prayer: %w", err)
	}
	logger.Info("Prayer created", "id", p.ID, "category", p.Category)

	if s.reminders != nil && p.NotificationEnabled && p.TargetDate != nil {
		if _, err := s.reminders.Schedule(p); err != nil {
			side.Reminders = err
		}
	}
	s.refreshWidget()
	return p, side.orNil()
}

// Update replaces the editable fields, then cancels every reminder for the
// record and schedules again when notifications are on and a target date is set.
func (s *Service) Update(id string, f Fields) (models.Prayer, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.store.GetPrayer(id)
	if err != nil {
		return models.Prayer{}, fmt.Errorf("failed to load prayer: %w", err)
	}
	before := p
	if err := s.apply(&p, f); err != nil {
		return models.Prayer{}, err
	}
	modified := s.now()
	p.ModifiedAt = &modified

	var side SyncError
	staleEvent, addedEvent := p.CalendarEventID, ""
	switch {
	case !f.AddToCalendar:
		p.CalendarEventID = ""
	case staleEvent != "" && sameCalendarEntry(before, p):
		staleEvent = ""
	default:
		p.CalendarEventID = ""
		if err := s.addCalendarEvent(&p); err != nil {
			// The existing entry stays linked until a replacement exists.
			side.Calendar = err
			p.CalendarEventID = staleEvent
			staleEvent = ""
		} else {
			addedEvent = p.CalendarEventID
		}
	}

	if err := s.store.UpdatePrayer(p); err != nil {
		s.removeCalendarEvent(addedEvent)
		return models.Prayer{}, fmt.Errorf("failed to update prayer: %w", err)
	}
	s.removeCalendarEvent(staleEvent)

	if s.reminders != nil {
		if err := s.reminders.Cancel(p.ID); err != nil {
			side.Reminders = err
		} else if p.NotificationEnabled && p.TargetDate != nil {
			if _, err := s.reminders.Schedule(p); err != nil {
				side.Reminders = err
			}
		}
	}
	s.refreshWidget()
	return p, side.orNil()
}

// Move changes the storage. Reminders are left as they are.
func (s *Service) Move(id string, to models.Storage) (models.Prayer, error) {
	if !to.Valid() {
		return models.Prayer{}, fmt.Errorf("%w: %q", models.ErrInvalidStorage, to)
	}
	return s.mutate(id, func(p *models.Prayer) error {
		moved := s.now()
		p.Storage = to
		p.MovedAt = &moved
		return nil
	})
}

func (s *Service) ToggleFavorite(id string) (models.Prayer, error) {
	return s.mutate(id, func(p *models.Prayer) error {
		modified := s.now()
		p.IsFavorite = !p.IsFavorite
		p.ModifiedAt = &modified
		return nil
	})
}

// Delete cancels the prayer's reminders, drops its calendar entry if possible,
// removes the record and then its attachment files.
func (s *Service) Delete(id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.store.GetPrayer(id)
	if err != nil {
		return fmt.Errorf("failed to load prayer: %w", err)
	}

	if s.reminders != nil {
		if err := s.reminders.Cancel(p.ID); err != nil {
			return fmt.Errorf("failed to cancel reminders: %w", err)
		}
	}
	s.removeCalendarEvent(p.CalendarEventID)

	if err := s.store.DeletePrayer(p.ID); err != nil {
		return fmt.Errorf("failed to delete prayer: %w", err)
	}
	s.deleteFiles(p.Attachments)
	logger.Info("Prayer deleted", "id", p.ID, "attachments", len(p.Attachments))

	s.refreshWidget()
	return nil
}

// AddAttachments links already saved attachments to the prayer after the existing ones.
func (s *Service) AddAttachments(id string, atts []models.Attachment) (models.Prayer, error) {
	return s.mutate(id, func(p *models.Prayer) error {
		now := s.now()
		sorted := p.SortedAttachments()
		for _, a := range atts {
			s.adoptAttachment(&a, p.ID, len(sorted), now)
			sorted = append(sorted, a)
		}
		p.Attachments = sorted
		p.ModifiedAt = &now
		return nil
	})
}

// RemoveAttachment unlinks one attachment and deletes its file.
func (s *Service) RemoveAttachment(id, attachmentID string) (models.Prayer, error) {
	var removed models.Attachment
	p, err := s.mutate(id, func(p *models.Prayer) error {
		kept := make([]models.Attachment, 0, len(p.Attachments))
		for _, a := range p.SortedAttachments() {
			if a.ID == attachmentID {
				removed = a
				continue
			}
			a.Order = len(kept)
			kept = append(kept, a)
		}
		if removed.ID == "" {
			return fmt.Errorf("attachment %s: %w", attachmentID, storage.ErrNotFound)
		}
		now := s.now()
		p.Attachments = kept
		p.ModifiedAt = &now
		return nil
	})
	if err != nil {
		return models.Prayer{}, err
	}
	s.deleteFiles([]models.Attachment{removed})
	return p, nil
}

// ReorderAttachments sets the attachment order. ids must name every attachment once.
func (s *Service) ReorderAttachments(id string, ids []string) (models.Prayer, error) {
	return s.mutate(id, func(p *models.Prayer) error {
		if len(ids) != len(p.Attachments) {
			return fmt.Errorf("reorder needs all %d attachments, got %d", len(p.Attachments), len(ids))
		}
		byID := make(map[string]models.Attachment, len(p.Attachments))
		for _, a := range p.Attachments {
			byID[a.ID] = a
		}
		ordered := make([]models.Attachment, 0, len(ids))
		for i, aid := range ids {
			a, ok := byID[aid]
			if !ok {
				return fmt.Errorf("attachment %s: %w", aid, storage.ErrNotFound)
			}
			delete(byID, aid)
			a.Order = i
			ordered = append(ordered, a)
		}
		now := s.now()
		p.Attachments = ordered
		p.ModifiedAt = &now
		return nil
	})
}

// UpdateOCRText stores the recognized text of an attachment. A nil text clears it.
func (s *Service) UpdateOCRText(id, attachmentID string, text *string) (models.Prayer, error) {
	return s.mutate(id, func(p *models.Prayer) error {
		for i := range p.Attachments {
			if p.Attachments[i].ID == attachmentID {
				p.Attachments[i].OCRText = text
				return nil
			}
		}
		return fmt.Errorf("attachment %s: %w", attachmentID, storage.ErrNotFound)
	})
}

// Get loads one prayer.
func (s *Service) Get(id string) (models.Prayer, error) {
	return s.store.GetPrayer(id)
}

// mutate runs a read-modify-write on one record under its lock, then
// refreshes the widget.
func (s *Service) mutate(id string, fn func(p *models.Prayer) error) (models.Prayer, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.store.GetPrayer(id)
	if err != nil {
		return models.Prayer{}, fmt.Errorf("failed to load prayer: %w", err)
	}
	if err := fn(&p); err != nil {
		return models.Prayer{}, err
	}
	if err := s.store.UpdatePrayer(p); err != nil {
		return models.Prayer{}, fmt.Errorf("failed to update prayer: %w", err)
	}
	s.refreshWidget()
	return p, nil
}

// apply validates f and copies it onto p together with the generated title.
func (s *Service) apply(p *models.Prayer, f Fields) error {
	if err := models.ValidateContent(f.Content); err != nil {
		return err
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidCategory, f.Category)
	}

	settings := models.DefaultNotificationSettings()
	if f.NotificationSettings != nil {
		settings = *f.NotificationSettings
		settings.ReminderDays = append([]int(nil), f.NotificationSettings.ReminderDays...)
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.IsEnabled = f.NotificationEnabled

	next := *p
	next.Content = f.Content
	next.Category = f.Category
	next.Target = strings.TrimSpace(f.Target)
	next.Title = models.GenerateTitle(next.Target, next.Category)
	next.TargetDate = dateOnly(f.TargetDate)
	next.NotificationEnabled = f.NotificationEnabled
	next.NotificationSettings = settings
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

func (s *Service) adoptAttachment(a *models.Attachment, prayerID string, order int, now time.Time) {
	if a.ID == "" {
		a.ID = s.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.PrayerID = prayerID
	a.Order = order
}

func (s *Service) addCalendarEvent(p *models.Prayer) error {
	if s.calendar == nil || p.TargetDate == nil {
		return nil
	}
	id, err := s.calendar.AddEvent(p.Title, p.Content, *p.TargetDate, calendar.DefaultAlarmOffsets)
	if err != nil {
		return err
	}
	p.CalendarEventID = id
	return nil
}

// sameCalendarEntry reports whether the fields written to a calendar event are unchanged.
func sameCalendarEntry(a, b models.Prayer) bool {
	if a.Title != b.Title || a.Content != b.Content {
		return false
	}
	if a.TargetDate == nil || b.TargetDate == nil {
		return a.TargetDate == b.TargetDate
	}
	return a.TargetDate.Equal(*b.TargetDate)
}

// removeCalendarEvent is best effort: failures are logged and ignored.
func (s *Service) removeCalendarEvent(id string) {
	if s.calendar == nil || id == "" {
		return
	}
	if err := s.calendar.RemoveEvent(id); err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		logger.Warn("Failed to remove calendar event", "event", id, "error", err)
	}
}

func (s *Service) deleteFiles(atts []models.Attachment) {
	if s.files == nil {
		return
	}
	for _, a := range atts {
		if err := s.files.Delete(a.FileName); err != nil {
			logger.Warn("Failed to delete attachment file", "file", a.FileName, "error", err)
		}
	}
}

func (s *Service) refreshWidget() {
	if s.widget != nil {
		s.widget.Refresh()
	}
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &day
}
