package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/constants"
)

type RepeatRule string

const (
	RepeatNone     RepeatRule = "none"
	RepeatDaily    RepeatRule = "daily"
	RepeatWeekdays RepeatRule = "weekdays"
	RepeatWeekly   RepeatRule = "weekly"
	RepeatCustom   RepeatRule = "custom"
)

func ParseRepeatRule(s string) (RepeatRule, error) {
	switch r := RepeatRule(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RepeatNone, nil
	case RepeatNone, RepeatDaily, RepeatWeekdays, RepeatWeekly, RepeatCustom:
		return r, nil
	}
	return "", fmt.Errorf("invalid repeat rule: %q", s)
}

// WeekdayMask holds one flag per weekday, indexed by time.Weekday (Sunday first).
type WeekdayMask [7]bool

func (m WeekdayMask) Has(wd time.Weekday) bool {
	return m[wd]
}

func (m WeekdayMask) Empty() bool {
	for _, v := range m {
		if v {
			return false
		}
	}
	return true
}

// MaskOf builds a mask from a list of weekdays.
func MaskOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m[d] = true
	}
	return m
}

// AvailableReminderDays are the offsets offered for selection
var AvailableReminderDays = []int{30, 14, 7, 5, 3, 2, 1, 0}

type NotificationSettings struct {
	IsEnabled         bool        `json:"is_enabled"`
	Hour              int         `json:"hour"`
	Minute            int         `json:"minute"`
	ReminderDays      []int       `json:"reminder_days"`
	RepeatRule        RepeatRule  `json:"repeat_rule"`
	CustomWeekdayMask WeekdayMask `json:"custom_weekday_mask"`
	RepeatEndDate     *time.Time  `json:"repeat_end_date,omitempty"`
	MaxRepeatCount    *int        `json:"max_repeat_count,omitempty"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		IsEnabled:    true,
		Hour:         constants.DefaultReminderHour,
		Minute:       constants.DefaultReminderMinute,
		ReminderDays: []int{7, 3, 1, 0},
		RepeatRule:   RepeatNone,
	}
}

// SimpleNotificationSettings only reminds the day before and on the day.
func SimpleNotificationSettings() NotificationSettings {
	s := DefaultNotificationSettings()
	s.ReminderDays = []int{1, 0}
	return s
}

// IntensiveNotificationSettings adds a daily repeat on top of the default offsets.
func IntensiveNotificationSettings() NotificationSettings {
	s := DefaultNotificationSettings()
	s.ReminderDays = []int{7, 5, 3, 2, 1, 0}
	s.RepeatRule = RepeatDaily
	return s
}

func (s *NotificationSettings) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("notification hour must be between 0 and 23, got %d", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("notification minute must be between 0 and 59, got %d", s.Minute)
	}
	if _, err := ParseRepeatRule(string(s.RepeatRule)); err != nil {
		return err
	}
	if s.RepeatRule == RepeatCustom && s.CustomWeekdayMask.Empty() {
		return fmt.Errorf("custom repeat requires at least one weekday")
	}
	if s.MaxRepeatCount != nil && *s.MaxRepeatCount < 1 {
		return fmt.Errorf("max repeat count must be at least 1")
	}
	return nil
}

// Normalize drops negative offsets, removes duplicates and sorts descending.
func (s *NotificationSettings) Normalize() {
	seen := make(map[int]bool, len(s.ReminderDays))
	days := make([]int, 0, len(s.ReminderDays))
	for _, d := range s.ReminderDays {
		if d < 0 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	s.ReminderDays = days
	if s.RepeatRule == "" {
		s.RepeatRule = RepeatNone
	}
}

// ToggleReminderDay adds the offset if absent, removes it otherwise.
func (s *NotificationSettings) ToggleReminderDay(day int) {
	if day < 0 {
		return
	}
	for i, d := range s.ReminderDays {
		if d == day {
			s.ReminderDays = append(s.ReminderDays[:i:i], s.ReminderDays[i+1:]...)
			return
		}
	}
	s.ReminderDays = append(s.ReminderDays, day)
	s.Normalize()
}

func (s *NotificationSettings) IsReminderDaySelected(day int) bool {
	for _, d := range s.ReminderDays {
		if d == day {
			return true
		}
	}
	return false
}

// ReminderDaysText renders the offsets as "D-7, D-3, D-Day".
func (s *NotificationSettings) ReminderDaysText() string {
	if len(s.ReminderDays) == 0 {
		return "없음"
	}
	days := append([]int(nil), s.ReminderDays...)
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	parts := make([]string, 0, len(days))
	for _, d := range days {
		if d == 0 {
			parts = append(parts, "D-Day")
		} else {
			parts = append(parts, fmt.Sprintf("D-%d", d))
		}
	}
	return strings.Join(parts, ", ")
}

// TimeText renders the firing time as HH:MM.
func (s *NotificationSettings) TimeText() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// RepeatMatches reports whether the repeat rule fires on day. today anchors the
// weekly rule, which repeats on today's weekday.
func (s *NotificationSettings) RepeatMatches(day, today time.Time) bool {
	switch s.RepeatRule {
	case RepeatDaily:
		return true
	case RepeatWeekdays:
		wd := day.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case RepeatWeekly:
		return day.Weekday() == today.Weekday()
	case RepeatCustom:
		return s.CustomWeekdayMask.Has(day.Weekday())
	default:
		return false
	}
}

// RepeatLimit is the effective cap on repeat occurrences.
func (s *NotificationSettings) RepeatLimit() int {
	limit := constants.MaxRepeatNotifications
	if s.MaxRepeatCount != nil && *s.MaxRepeatCount < limit {
		limit = *s.MaxRepeatCount
	}
	return limit
}
