package reminder

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/prayanswer/internal/logger"
	"github.com/julianstephens/prayanswer/internal/models"
)

// ErrPermissionRequired means notification permission was denied. The user has
// to grant it in settings; nothing is retried automatically.
var ErrPermissionRequired = errors.New("notification permission required")

// Notifier is the local notification collaborator.
type Notifier interface {
	RequestAuthorization() (bool, error)
	// Schedule reports false when the request was dropped without error.
	Schedule(identifier string, fireAt time.Time, title, body string) (bool, error)
	Cancel(identifiers []string) error
	PendingWithPrefix(prefix string) ([]string, error)
}

// Request is one concrete notification to register.
type Request struct {
	Identifier string
	FireAt     time.Time
	Title      string
	Body       string
	// Offset is the number of days before the target date the request fires.
	Offset int
	Repeat bool
}

func recordPrefix(prayerID string) string {
	return fmt.Sprintf("prayer_%s_", prayerID)
}

// OffsetIdentifier is stable per prayer and offset, so rescheduling replaces.
func OffsetIdentifier(prayerID string, offset int) string {
	return fmt.Sprintf("prayer_%s_dday_d%d", prayerID, offset)
}

func RepeatIdentifier(prayerID string, n int) string {
	return fmt.Sprintf("prayer_%s_repeat_%d", prayerID, n)
}

// Plan computes the notifications for a prayer as of now. One-shot offsets
// whose day is before today are dropped. Repeat notifications are additive:
// they fire from today through the earlier of the target date and the repeat
// end date, on the rule's weekdays, skip days already covered by an offset,
// and stop at the repeat limit.
func Plan(p models.Prayer, now time.Time) []Request {
	if p.TargetDate == nil {
		return nil
	}

	settings := p.NotificationSettings
	settings.ReminderDays = append([]int(nil), settings.ReminderDays...)
	settings.Normalize()

	loc := now.Location()
	today := models.StartOfDay(now)
	ty, tm, td := p.TargetDate.Date()
	targetDay := time.Date(ty, tm, td, 0, 0, 0, 0, loc)

	at := func(day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), settings.Hour, settings.Minute, 0, 0, loc)
	}

	var out []Request
	offsets := make(map[int]bool, len(settings.ReminderDays))
	for _, d := range settings.ReminderDays {
		offsets[d] = true
		day := targetDay.AddDate(0, 0, -d)
		if day.Before(today) {
			continue
		}
		title, body := offsetMessage(p.Target, d)
		out = append(out, Request{
			Identifier: OffsetIdentifier(p.ID, d),
			FireAt:     at(day),
			Title:      title,
			Body:       body,
			Offset:     d,
		})
	}

	if settings.RepeatRule == models.RepeatNone || settings.RepeatRule == "" {
		return out
	}

	end := targetDay
	if settings.RepeatEndDate != nil {
		ey, em, ed := settings.RepeatEndDate.Date()
		if repeatEnd := time.Date(ey, em, ed, 0, 0, 0, 0, loc); repeatEnd.Before(end) {
			end = repeatEnd
		}
	}

	limit := settings.RepeatLimit()
	count := 0
	for day := today; !day.After(end) && count < limit; day = day.AddDate(0, 0, 1) {
		remaining := models.DaysBetween(day, targetDay)
		if offsets[remaining] || !settings.RepeatMatches(day, today) {
			continue
		}
		title, body := repeatMessage(p.Target, remaining)
		out = append(out, Request{
			Identifier: RepeatIdentifier(p.ID, count),
			FireAt:     at(day),
			Title:      title,
			Body:       body,
			Offset:     remaining,
			Repeat:     true,
		})
		count++
	}
	return out
}

// Scheduler turns prayers into registered notifications.
type Scheduler struct {
	notifier Notifier
	now      func() time.Time
}

func NewScheduler(notifier Notifier, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{notifier: notifier, now: now}
}

// Schedule registers the plan for p and returns how many requests the notifier
// kept.
// A prayer with notifications off or no target date schedules nothing.
func (s *Scheduler) Schedule(p models.Prayer) (int, error) {
	if !p.NotificationEnabled || p.TargetDate == nil {
		return 0, nil
	}

	granted, err := s.notifier.RequestAuthorization()
	if err != nil {
		return 0, fmt.Errorf("notification authorization failed: %w", err)
	}
	if !granted {
		return 0, ErrPermissionRequired
	}

	requests := Plan(p, s.now())
	kept := 0
	for _, r := range requests {
		ok, err := s.notifier.Schedule(r.Identifier, r.FireAt, r.Title, r.Body)
		if err != nil {
			return kept, fmt.Errorf("failed to schedule %s: %w", r.Identifier, err)
		}
		if ok {
			kept++
		}
	}
	if dropped := len(requests) - kept; dropped > 0 {
		logger.Warn("Some reminders were not scheduled", "prayer", p.ID, "dropped", dropped)
	}
	logger.Debug("Scheduled reminders", "prayer", p.ID, "count", kept)
	return kept, nil
}

// Cancel removes every pending request issued for the prayer.
func (s *Scheduler) Cancel(prayerID string) error {
	ids, err := s.notifier.PendingWithPrefix(recordPrefix(prayerID))
	if err != nil {
		return fmt.Errorf("failed to list pending reminders: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.notifier.Cancel(ids); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	logger.Debug("Cancelled reminders", "prayer", prayerID, "count", len(ids))
	return nil
}

// Reschedule cancels everything for p, then schedules afresh. The cancel always
// completes before any new request is issued.
func (s *Scheduler) Reschedule(p models.Prayer) (int, error) {
	if err := s.Cancel(p.ID); err != nil {
		return 0, err
	}
	return s.Schedule(p)
}
