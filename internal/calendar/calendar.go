// Package calendar writes D-Day entries as iCalendar files, one .ics per
// event, so they can be subscribed to or imported by a calendar app.
package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/julianstephens/prayanswer/internal/constants"
	"github.com/julianstephens/prayanswer/internal/permission"
)

var (
	ErrPermissionRequired = errors.New("calendar permission required")
	ErrEventNotFound      = errors.New("calendar event not found")
)

// DefaultAlarmOffsets are the days before the event an alarm fires.
var DefaultAlarmOffsets = []int{7, 3, 1}

const productID = "-//julianstephens//prayanswer//KO"

// Event is the stored view of one calendar entry.
type Event struct {
	ID    string
	Title string
	Notes string
	Date  time.Time
}

// ICSCalendar keeps events as files under Dir.
type ICSCalendar struct {
	dir  string
	gate *permission.Gate

	// AlarmHour and AlarmMinute set the time of day alarms fire.
	AlarmHour   int
	AlarmMinute int

	newID func() string
	now   func() time.Time
}

func NewICSCalendar(dir string, gate *permission.Gate) *ICSCalendar {
	return &ICSCalendar{
		dir:         dir,
		gate:        gate,
		AlarmHour:   constants.DefaultReminderHour,
		AlarmMinute: constants.DefaultReminderMinute,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (c *ICSCalendar) Dir() string {
	return c.dir
}

// RequestAccess returns the cached decision, prompting only the first time.
func (c *ICSCalendar) RequestAccess() (bool, error) {
	return c.gate.Request()
}

// AddEvent writes an all-day event on day with one display alarm per offset
// and returns its id.
func (c *ICSCalendar) AddEvent(title, notes string, day time.Time, alarmOffsets []int) (string, error) {
	granted, err := c.RequestAccess()
	if err != nil {
		return "", fmt.Errorf("calendar authorization failed: %w", err)
	}
	if !granted {
		return "", ErrPermissionRequired
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create calendar directory: %w", err)
	}

	id := c.newID()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	event := cal.AddEvent(id)
	event.SetDtStampTime(c.now().UTC())
	event.SetSummary(title)
	if notes != "" {
		event.SetDescription(notes)
	}
	event.SetAllDayStartAt(start)
	event.SetAllDayEndAt(start.AddDate(0, 0, 1))

	for _, d := range alarmOffsets {
		if d < 0 {
			continue
		}
		alarm := event.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetProperty(ics.ComponentPropertyDescription, title)
		alarm.SetProperty(ics.ComponentPropertyTrigger, trigger(d, c.AlarmHour, c.AlarmMinute))
	}

	if err := os.WriteFile(c.path(id), []byte(cal.Serialize()), 0644); err != nil {
		return "", fmt.Errorf("failed to write calendar event: %w", err)
	}
	return id, nil
}

// RemoveEvent deletes the event file.
func (c *ICSCalendar) RemoveEvent(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(c.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to remove calendar event: %w", err)
	}
	return nil
}

// GetEvent reads an event back from disk.
func (c *ICSCalendar) GetEvent(id string) (Event, error) {
	if err := checkID(id); err != nil {
		return Event{}, err
	}
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("failed to read calendar event: %w", err)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return Event{}, fmt.Errorf("failed to parse calendar event: %w", err)
	}
	events := cal.Events()
	if len(events) == 0 {
		return Event{}, ErrEventNotFound
	}
	ev := events[0]

	out := Event{ID: ev.Id()}
	if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ev.GetProperty(ics.ComponentPropertyDescription); p != nil {
		out.Notes = p.Value
	}
	if start, err := ev.GetAllDayStartAt(); err == nil {
		out.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.Local)
	}
	return out, nil
}

func (c *ICSCalendar) path(id string) string {
	return filepath.Join(c.dir, id+".ics")
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return ErrEventNotFound
	}
	return nil
}

// trigger renders the alarm offset relative to the all-day start as an
// iCalendar duration, for example D-7 at 09:00 is -P6DT15H.
func trigger(daysBefore, hour, minute int) string {
	total := daysBefore*24*60 - (hour*60 + minute)
	sign := "-"
	if total <= 0 {
		sign = ""
		total = -total
	}
	days := total / (24 * 60)
	hours := (total % (24 * 60)) / 60
	mins := total % 60

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString("P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours > 0 || mins > 0 || days == 0 {
		b.WriteString("T")
		if hours > 0 || mins == 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if mins > 0 {
			fmt.Fprintf(&b, "%dM", mins)
		}
	}
	return b.String()
}
