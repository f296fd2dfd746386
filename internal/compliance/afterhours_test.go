package compliance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/timezone"
)

const newYork = "America/New_York"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestAfterHours(now time.Time) *AfterHours {
	return NewAfterHours(timezone.NewResolver(nil, fixedClock(now)), "", nil)
}

func rulesWithAction(action domain.AfterHoursAction) *domain.ExecutionRules {
	rules := domain.DefaultExecutionRules(uuid.New(), time.Time{})
	rules.AfterHoursAction = action
	rules.AfterHoursBusinessHours.Timezone = newYork
	return rules
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestIsAfterHoursHalfOpenBoundaries(t *testing.T) {
	a := newTestAfterHours(time.Now())
	rules := rulesWithAction(domain.AfterHoursRescheduleNextAvailable)

	// Wednesday 2024-07-10, New York is UTC-4.
	cases := []struct {
		name    string
		instant time.Time
		want    bool
	}{
		{"exactly start hour", utc(2024, time.July, 10, 12, 0), false},
		{"one minute before start", utc(2024, time.July, 10, 11, 59), true},
		{"last minute before end", utc(2024, time.July, 11, 0, 59), false},
		{"exactly end hour", utc(2024, time.July, 11, 1, 0), true},
		{"midday", utc(2024, time.July, 10, 17, 30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.IsAfterHours(tc.instant, rules, ""))
		})
	}
}

func TestIsAfterHoursWeekdayGating(t *testing.T) {
	a := newTestAfterHours(time.Now())
	rules := rulesWithAction(domain.AfterHoursRescheduleNextAvailable)

	saturdayNoon := utc(2024, time.July, 13, 16, 0)
	sundayNoon := utc(2024, time.July, 14, 16, 0)
	if !a.IsAfterHours(saturdayNoon, rules, "") {
		t.Fatalf("expected %v to be after hours (saturday)", saturdayNoon)
	}
	if !a.IsAfterHours(sundayNoon, rules, "") {
		t.Fatalf("expected %v to be after hours (sunday)", sundayNoon)
	}

	rules.AfterHoursBusinessHours.DaysOfWeek = nil
	if a.IsAfterHours(saturdayNoon, rules, "") {
		t.Fatalf("expected an empty day list to allow every day")
	}
}

func TestIsAfterHoursDisabledOrUnconfigured(t *testing.T) {
	a := newTestAfterHours(time.Now())
	saturday := utc(2024, time.July, 13, 16, 0)

	rules := rulesWithAction(domain.AfterHoursRescheduleNextAvailable)
	rules.EnableAfterHoursHandling = false
	assert.False(t, a.IsAfterHours(saturday, rules, ""))

	rules = rulesWithAction(domain.AfterHoursRescheduleNextAvailable)
	rules.AfterHoursBusinessHours = nil
	assert.False(t, a.IsAfterHours(saturday, rules, ""))

	assert.False(t, a.IsAfterHours(saturday, nil, ""))
}

func TestEffectiveZonePrecedence(t *testing.T) {
	a := newTestAfterHours(time.Now())
	rules := rulesWithAction(domain.AfterHoursRescheduleNextAvailable)

	assert.Equal(t, "America/Los_Angeles", a.EffectiveZone(rules, "America/Los_Angeles"))
	assert.Equal(t, newYork, a.EffectiveZone(rules, ""))

	rules.AfterHoursBusinessHours.Timezone = "Europe/London"
	assert.Equal(t, "Europe/London", a.EffectiveZone(rules, ""))

	rules.AfterHoursBusinessHours.Timezone = ""
	assert.Equal(t, domain.DefaultBusinessHoursTimezoneName, a.EffectiveZone(rules, ""))

	// 09:00 in New York is 06:00 in Los Angeles.
	instant := utc(2024, time.July, 10, 13, 0)
	assert.False(t, a.IsAfterHours(instant, rules, ""))
	assert.True(t, a.IsAfterHours(instant, rules, "America/Los_Angeles"))
}

func TestNextAvailableInstant(t *testing.T) {
	cases := []struct {
		name   string
		action domain.AfterHoursAction
		at     string
		now    time.Time
		want   time.Time
	}{
		{
			name:   "next business day from friday night crosses DST",
			action: domain.AfterHoursRescheduleNextBusinessDay,
			now:    utc(2024, time.March, 9, 3, 0),   // Fri 2024-03-08 22:00 EST
			want:   utc(2024, time.March, 11, 12, 0), // Mon 08:00 EDT
		},
		{
			name:   "next business day across month end",
			action: domain.AfterHoursRescheduleNextBusinessDay,
			now:    utc(2024, time.June, 1, 2, 0), // Fri 2024-05-31 22:00 EDT
			want:   utc(2024, time.June, 3, 12, 0),
		},
		{
			name:   "next business day across year end",
			action: domain.AfterHoursRescheduleNextBusinessDay,
			now:    utc(2025, time.January, 1, 3, 0), // Tue 2024-12-31 22:00 EST
			want:   utc(2025, time.January, 1, 13, 0),
		},
		{
			name:   "next available before opening is today",
			action: domain.AfterHoursRescheduleNextAvailable,
			now:    utc(2024, time.July, 9, 10, 30), // Tue 06:30 EDT
			want:   utc(2024, time.July, 9, 12, 0),
		},
		{
			name:   "next available during hours is tomorrow",
			action: domain.AfterHoursRescheduleNextAvailable,
			now:    utc(2024, time.July, 9, 14, 0), // Tue 10:00 EDT
			want:   utc(2024, time.July, 10, 12, 0),
		},
		{
			name:   "next available early saturday skips weekend",
			action: domain.AfterHoursRescheduleNextAvailable,
			now:    utc(2024, time.July, 13, 10, 0), // Sat 06:00 EDT
			want:   utc(2024, time.July, 15, 12, 0),
		},
		{
			name:   "specific time later today",
			action: domain.AfterHoursRescheduleSpecificTime,
			at:     "10:30",
			now:    utc(2024, time.July, 9, 13, 0), // Tue 09:00 EDT
			want:   utc(2024, time.July, 9, 14, 30),
		},
		{
			name:   "specific time already passed",
			action: domain.AfterHoursRescheduleSpecificTime,
			at:     "10:30",
			now:    utc(2024, time.July, 9, 15, 0), // Tue 11:00 EDT
			want:   utc(2024, time.July, 10, 14, 30),
		},
		{
			name:   "specific time passed on friday lands monday",
			action: domain.AfterHoursRescheduleSpecificTime,
			at:     "10:30",
			now:    utc(2024, time.July, 12, 15, 0), // Fri 11:00 EDT
			want:   utc(2024, time.July, 15, 14, 30),
		},
		{
			name:   "invalid specific time uses business start",
			action: domain.AfterHoursRescheduleSpecificTime,
			at:     "25:99",
			now:    utc(2024, time.July, 9, 10, 0), // Tue 06:00 EDT
			want:   utc(2024, time.July, 9, 12, 0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAfterHours(tc.now)
			rules := rulesWithAction(tc.action)
			rules.AfterHoursRescheduleTime = tc.at

			got := a.NextAvailableInstant(utc(2024, time.January, 1, 0, 0), rules, "")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextAvailableInstantNonRescheduleActionsKeepInstant(t *testing.T) {
	a := newTestAfterHours(utc(2024, time.July, 9, 14, 0))
	instant := utc(2024, time.July, 13, 16, 0)

	for _, action := range []domain.AfterHoursAction{
		domain.AfterHoursSkipNode,
		domain.AfterHoursPauseJourney,
		domain.AfterHoursDefaultEvent,
		domain.AfterHoursAction("SOMETHING_ELSE"),
	} {
		assert.Equal(t, instant, a.NextAvailableInstant(instant, rulesWithAction(action), ""), string(action))
	}
}
