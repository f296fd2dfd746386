package timezone

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestToUTCRoundTrip(t *testing.T) {
	r := NewResolver(nil, nil)

	zones := []string{
		"UTC",
		"America/New_York",
		"America/Los_Angeles",
		"Europe/London",
		"Europe/Berlin",
		"Asia/Kolkata",
		"Asia/Tokyo",
		"Australia/Sydney",
		"Pacific/Auckland",
		"America/St_Johns",
	}
	cases := []struct {
		date   Date
		hour   int
		minute int
	}{
		{NewDate(2024, time.January, 31), 23, 59},
		{NewDate(2024, time.February, 29), 0, 15},
		{NewDate(2024, time.July, 15), 13, 45},
		{NewDate(2023, time.December, 31), 18, 30},
		{NewDate(2025, time.June, 1), 8, 1},
	}

	for _, zone := range zones {
		for _, tc := range cases {
			t.Run(fmt.Sprintf("%s/%s %02d:%02d", zone, tc.date, tc.hour, tc.minute), func(t *testing.T) {
				instant := r.ToUTC(tc.date, tc.hour, tc.minute, zone)
				require.Equal(t, time.UTC, instant.Location())

				assert.Equal(t, tc.date, r.DateParts(instant, zone))
				wc := r.WallClock(instant, zone)
				assert.Equal(t, tc.hour, wc.Hour)
				assert.Equal(t, tc.minute, wc.Minute)
				assert.Equal(t, tc.date.Weekday(), wc.Weekday)
			})
		}
	}
}

func TestToUTCKnownOffsets(t *testing.T) {
	r := NewResolver(nil, nil)

	winter := r.ToUTC(NewDate(2024, time.January, 15), 9, 0, "America/New_York")
	assert.Equal(t, time.Date(2024, time.January, 15, 14, 0, 0, 0, time.UTC), winter)

	summer := r.ToUTC(NewDate(2024, time.July, 15), 9, 0, "America/New_York")
	assert.Equal(t, time.Date(2024, time.July, 15, 13, 0, 0, 0, time.UTC), summer)

	kolkata := r.ToUTC(NewDate(2024, time.July, 15), 9, 0, "Asia/Kolkata")
	assert.Equal(t, time.Date(2024, time.July, 15, 3, 30, 0, 0, time.UTC), kolkata)
}

func TestToUTCSpringForwardGapShiftsForward(t *testing.T) {
	r := NewResolver(nil, nil)

	// 02:30 does not exist in New York on 2024-03-10.
	instant := r.ToUTC(NewDate(2024, time.March, 10), 2, 30, "America/New_York")

	assert.Equal(t, time.Date(2024, time.March, 10, 7, 30, 0, 0, time.UTC), instant)
	wc := r.WallClock(instant, "America/New_York")
	assert.Equal(t, 3, wc.Hour)
	assert.Equal(t, 30, wc.Minute)
}

func TestToUTCFallBackOverlapPicksEarlier(t *testing.T) {
	r := NewResolver(nil, nil)

	// 01:30 happens twice in New York on 2024-11-03 (EDT then EST).
	instant := r.ToUTC(NewDate(2024, time.November, 3), 1, 30, "America/New_York")

	assert.Equal(t, time.Date(2024, time.November, 3, 5, 30, 0, 0, time.UTC), instant)
}

func TestUnknownZoneFallsBackToUTC(t *testing.T) {
	r := NewResolver(nil, nil)
	instant := time.Date(2024, time.May, 6, 17, 20, 0, 0, time.UTC)

	wc := r.WallClock(instant, "Mars/Olympus_Mons")
	assert.Equal(t, WallClock{Hour: 17, Minute: 20, Weekday: time.Monday}, wc)

	assert.Equal(t, NewDate(2024, time.May, 6), r.DateParts(instant, "Mars/Olympus_Mons"))

	back := r.ToUTC(NewDate(2024, time.May, 6), 17, 20, "Mars/Olympus_Mons")
	assert.Equal(t, instant, back)
}

func TestUnknownZoneWarnsOnEveryFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewResolver(zap.New(core), nil)

	for i := 0; i < 3; i++ {
		_, ok := r.Location("Mars/Olympus_Mons")
		assert.False(t, ok)
	}
	_, ok := r.Location("America/New_York")
	assert.True(t, ok)

	assert.Equal(t, 3, logs.FilterMessage("timezone: unknown zone, falling back to UTC").Len())
}

func TestZeroInstantSubstitutesNow(t *testing.T) {
	now := time.Date(2024, time.August, 2, 12, 5, 0, 0, time.UTC)
	r := NewResolver(nil, func() time.Time { return now })

	wc := r.WallClock(time.Time{}, "UTC")
	assert.Equal(t, WallClock{Hour: 12, Minute: 5, Weekday: time.Friday}, wc)
}

func TestDateAddDaysRollsCalendar(t *testing.T) {
	cases := []struct {
		from Date
		days int
		want Date
	}{
		{NewDate(2024, time.January, 31), 1, NewDate(2024, time.February, 1)},
		{NewDate(2024, time.February, 28), 1, NewDate(2024, time.February, 29)},
		{NewDate(2023, time.February, 28), 1, NewDate(2023, time.March, 1)},
		{NewDate(2024, time.December, 31), 1, NewDate(2025, time.January, 1)},
		{NewDate(2024, time.March, 1), -1, NewDate(2024, time.February, 29)},
		{NewDate(2024, time.April, 30), 31, NewDate(2024, time.May, 31)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.AddDays(tc.days), "%s %+d", tc.from, tc.days)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-07-04")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.July, 4), d)
	assert.Equal(t, "2024-07-04", d.String())
	assert.Equal(t, time.Thursday, d.Weekday())

	_, err = ParseDate("07/04/2024")
	assert.Error(t, err)
}

func TestFirstReturnsFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "Europe/Paris", First(Static(""), nil, Static("  "), Static("Europe/Paris"), Static("UTC")))
	assert.Equal(t, "", First())

	called := false
	First(Static("UTC"), func() string {
		called = true
		return "Asia/Tokyo"
	})
	assert.False(t, called, "later sources must not be evaluated")
}
