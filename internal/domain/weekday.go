package domain

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUN":       time.Sunday,
	"MON":       time.Monday,
	"TUE":       time.Tuesday,
	"WED":       time.Wednesday,
	"THU":       time.Thursday,
	"FRI":       time.Friday,
	"SAT":       time.Saturday,
}

// WeekOrder lists weekdays Monday first, the order schedules are scanned in.
var WeekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return day, nil
}

// WeekdayName returns the upper-case persisted name of day.
func WeekdayName(day time.Weekday) string {
	return strings.ToUpper(day.String())
}

// ParseClock parses an "HH:mm" wall-clock string.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}
