package reminder

import (
	"fmt"
	"strings"
)

const (
	titleDefault = "기도 알림"
	titleDDay    = "오늘은 D-Day입니다"
)

func targetName(target string) string {
	if strings.TrimSpace(target) == "" {
		return "나"
	}
	return target
}

// offsetMessage returns the title and body for a one-shot reminder d days before the target date.
func offsetMessage(target string, d int) (string, string) {
	name := targetName(target)
	switch d {
	case 7:
		return titleDefault, fmt.Sprintf("%s을(를) 위한 기도, D-Day까지 일주일 남았습니다", name)
	case 3:
		return titleDefault, fmt.Sprintf("%s을(를) 위한 기도, D-Day까지 3일 남았습니다", name)
	case 1:
		return titleDefault, fmt.Sprintf("%s을(를) 위한 기도, 내일이 D-Day입니다", name)
	case 0:
		return titleDDay, fmt.Sprintf("오늘은 %s을(를) 위한 기도의 D-Day입니다", name)
	default:
		return titleDefault, genericBody(name, d)
	}
}

// repeatMessage returns the title and body for a recurring reminder.
func repeatMessage(target string, daysRemaining int) (string, string) {
	name := targetName(target)
	if daysRemaining == 0 {
		return titleDefault, fmt.Sprintf("오늘은 %s을(를) 위한 기도의 D-Day입니다", name)
	}
	return titleDefault, genericBody(name, daysRemaining)
}

func genericBody(name string, d int) string {
	return fmt.Sprintf("%s을(를) 위한 기도 D-%d", name, d)
}
