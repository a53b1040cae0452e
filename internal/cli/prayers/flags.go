package prayers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/cli"
	"github.com/julianstephens/prayanswer/internal/models"
	"github.com/julianstephens/prayanswer/internal/utils"
)

// ReminderFlags are the notification options shared by add and edit. Empty
// values leave the corresponding setting untouched.
type ReminderFlags struct {
	Preset      string `help:"Reminder preset (default|simple|intensive)."`
	Days        string `help:"Comma-separated reminder offsets in days before the D-Day (e.g. 7,3,1,0)."`
	Time        string `help:"Reminder time of day (HH:MM)."`
	Repeat      string `help:"Extra repeating reminders until the D-Day (none|daily|weekdays|weekly|custom)."`
	Weekdays    string `help:"Comma-separated weekdays for custom repeat."`
	RepeatEnd   string `help:"Last day for repeating reminders (YYYY-MM-DD or +N)."`
	RepeatCount int    `help:"Maximum number of repeating reminders."`
}

func (f *ReminderFlags) changed() bool {
	return f.Preset != "" || f.Days != "" || f.Time != "" || f.Repeat != "" ||
		f.Weekdays != "" || f.RepeatEnd != "" || f.RepeatCount != 0
}

// apply layers the flags over base.
func (f *ReminderFlags) apply(base models.NotificationSettings, now time.Time) (models.NotificationSettings, error) {
	s := base
	switch f.Preset {
	case "default":
		s = models.DefaultNotificationSettings()
	case "simple":
		s = models.SimpleNotificationSettings()
	case "intensive":
		s = models.IntensiveNotificationSettings()
	case "":
	default:
		return s, fmt.Errorf("invalid preset: %s", f.Preset)
	}

	if f.Days != "" {
		days, err := parseDays(f.Days)
		if err != nil {
			return s, err
		}
		s.ReminderDays = days
	}
	if f.Time != "" {
		h, m, err := utils.ParseTimeOfDay(f.Time)
		if err != nil {
			return s, err
		}
		s.Hour, s.Minute = h, m
	}
	if f.Repeat != "" {
		rule, err := models.ParseRepeatRule(f.Repeat)
		if err != nil {
			return s, err
		}
		s.RepeatRule = rule
	}
	if f.Weekdays != "" {
		wds, err := cli.ParseWeekdays(f.Weekdays)
		if err != nil {
			return s, err
		}
		s.CustomWeekdayMask = models.MaskOf(wds...)
	}
	if f.RepeatEnd != "" {
		end, err := utils.ParseRelativeDate(f.RepeatEnd, now)
		if err != nil {
			return s, fmt.Errorf("invalid --repeat-end: %w", err)
		}
		s.RepeatEndDate = &end
	}
	if f.RepeatCount != 0 {
		count := f.RepeatCount
		s.MaxRepeatCount = &count
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func parseDays(s string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid reminder day: %s", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// parseSwitch reads an on/off flag. An empty value keeps current.
func parseSwitch(name, value string, current bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return current, nil
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return current, fmt.Errorf("invalid --%s value %q (expected on or off)", name, value)
}
