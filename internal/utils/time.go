package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/prayanswer/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ApplyTimezone makes the named zone the process local zone. Dates, D-Day
// arithmetic and reminder times are all computed in time.Local.
func ApplyTimezone(timezone string) (*time.Location, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	time.Local = loc
	return loc, nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// ParseDate parses a date string (YYYY-MM-DD) as local midnight.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", dateStr)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
}

// ParseRelativeDate accepts YYYY-MM-DD, "today", or "+N" days from now.
func ParseRelativeDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	switch {
	case s == "today":
		return today, nil
	case strings.HasPrefix(s, "+"):
		var n int
		if _, err := fmt.Sscanf(s, "+%d", &n); err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid relative date %q", s)
		}
		return today.AddDate(0, 0, n), nil
	}
	return ParseDate(s)
}

// ParseTimeOfDay parses HH:MM into hour and minute.
func ParseTimeOfDay(timeStr string) (int, int, error) {
	t, err := time.Parse(constants.TimeFormat, strings.TrimSpace(timeStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	return t.Hour(), t.Minute(), nil
}

var userHomeDirFunc = os.UserHomeDir

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := userHomeDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
