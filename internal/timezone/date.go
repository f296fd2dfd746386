package timezone

import (
	"fmt"
	"time"
)

// DateLayout is the wire format used for calendar dates (blocked dates, query days).
const DateLayout = "2006-01-02"

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes the fields, so NewDate(2024, 1, 32) is February 1st.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf returns the date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("timezone: parse date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// AddDays shifts the date by n calendar days, rolling months and years exactly.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Weekday reports the day of week of the date.
func (d Date) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.midnightUTC().Before(other.midnightUTC())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.midnightUTC().After(other.midnightUTC())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
