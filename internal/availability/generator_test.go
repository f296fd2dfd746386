package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/repository"
	"github.com/acme/engagement-compliance/internal/timezone"
)

type fakeAvailability struct {
	rows         []domain.Availability
	err          error
	seenAssignee *uuid.UUID
}

func (f *fakeAvailability) ListActive(_ context.Context, _, _ uuid.UUID, assignee *uuid.UUID) ([]domain.Availability, error) {
	f.seenAssignee = assignee
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Availability
	for _, row := range f.rows {
		if assignee != nil && row.AssignedToUserID != nil && *row.AssignedToUserID != *assignee {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type fakeEvents struct {
	events []domain.CalendarEvent
}

func (f *fakeEvents) ListScheduled(_ context.Context, _, _ uuid.UUID, from, to time.Time) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	for _, e := range f.events {
		if e.Status == domain.EventStatusScheduled && !e.StartTime.Before(from) && !e.StartTime.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeEventTypes struct {
	minutes int
}

func (f *fakeEventTypes) Get(_ context.Context, tenantID, eventTypeID uuid.UUID) (*domain.EventType, error) {
	if f.minutes == 0 {
		return nil, repository.ErrNotFound
	}
	return &domain.EventType{ID: eventTypeID, TenantID: tenantID, DurationMinutes: f.minutes}, nil
}

type fakeDirectory struct {
	tenantZone string
	userZone   string
	err        error
}

func (f *fakeDirectory) TenantTimezone(context.Context, uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.tenantZone == "" {
		return "", repository.ErrNotFound
	}
	return f.tenantZone, nil
}

func (f *fakeDirectory) UserTimezone(context.Context, uuid.UUID, uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.userZone == "" {
		return "", repository.ErrNotFound
	}
	return f.userZone, nil
}

type fixture struct {
	availability *fakeAvailability
	events       *fakeEvents
	eventTypes   *fakeEventTypes
	directory    *fakeDirectory
}

func newFixture(rows ...domain.Availability) *fixture {
	return &fixture{
		availability: &fakeAvailability{rows: rows},
		events:       &fakeEvents{},
		eventTypes:   &fakeEventTypes{},
		directory:    &fakeDirectory{},
	}
}

func (f *fixture) generator() *Generator {
	return NewGenerator(f.availability, f.events, f.eventTypes, f.directory, timezone.NewResolver(nil, nil), nil)
}

func weekly(days map[time.Weekday]domain.DaySchedule) domain.Availability {
	return domain.Availability{
		ID:             uuid.New(),
		WeeklySchedule: days,
		Active:         true,
	}
}

func window(start, end string) domain.DaySchedule {
	return domain.DaySchedule{Enabled: true, StartTime: start, EndTime: end}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.July, day, hour, minute, 0, 0, time.UTC)
}

// 2024-07-08 is a Monday.
func query(start, end time.Time) SlotQuery {
	return SlotQuery{TenantID: uuid.New(), EventTypeID: uuid.New(), RangeStart: start, RangeEnd: end}
}

func TestSlotsStayInsideRequestedRange(t *testing.T) {
	fx := newFixture(weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "12:00")}))
	fx.eventTypes.minutes = 60

	slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 10, 0), at(8, 11, 30)))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(8, 10, 0), at(8, 11, 0)}, slots)
}

func TestSlotsFromForeignZoneRespectBounds(t *testing.T) {
	row := weekly(map[time.Weekday]domain.DaySchedule{
		time.Monday:  {Enabled: true, StartTime: "09:00", EndTime: "17:00", Timezone: "Asia/Tokyo"},
		time.Sunday:  {Enabled: true, StartTime: "09:00", EndTime: "17:00", Timezone: "Asia/Tokyo"},
		time.Tuesday: {Enabled: true, StartTime: "09:00", EndTime: "17:00", Timezone: "Asia/Tokyo"},
	})
	fx := newFixture(row)
	start, end := at(7, 23, 0), at(8, 2, 0)

	slots, err := fx.generator().GenerateSlots(context.Background(), query(start, end))
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.False(t, s.Before(start), "slot %s before range", s)
		assert.True(t, s.Before(end), "slot %s at or after range end", s)
	}
	// Monday 09:00 JST is 00:00Z, the first slot after the range opens.
	assert.Equal(t, []time.Time{at(8, 0, 0), at(8, 0, 30), at(8, 1, 0), at(8, 1, 30)}, slots)
}

func TestCapacity(t *testing.T) {
	row := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "10:00")})
	booked := domain.CalendarEvent{
		ID:        uuid.New(),
		StartTime: at(8, 9, 0),
		EndTime:   at(8, 9, 30),
		Status:    domain.EventStatusScheduled,
	}

	t.Run("full slot excluded", func(t *testing.T) {
		fx := newFixture(row)
		fx.events.events = []domain.CalendarEvent{booked}
		slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(9, 0, 0)))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(8, 9, 30)}, slots)
	})

	t.Run("second seat available", func(t *testing.T) {
		roomy := row
		roomy.MaxEventsPerSlot = 2
		fx := newFixture(roomy)
		fx.events.events = []domain.CalendarEvent{booked}
		slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(9, 0, 0)))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(8, 9, 0), at(8, 9, 30)}, slots)
	})

	t.Run("partial overlap counts", func(t *testing.T) {
		fx := newFixture(row)
		fx.events.events = []domain.CalendarEvent{{
			StartTime: at(8, 9, 15),
			EndTime:   at(8, 9, 45),
			Status:    domain.EventStatusScheduled,
		}}
		slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(9, 0, 0)))
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}

func TestDuplicateRowsYieldSortedDistinctSlots(t *testing.T) {
	days := map[time.Weekday]domain.DaySchedule{
		time.Monday:  window("09:00", "10:00"),
		time.Tuesday: window("08:00", "09:00"),
	}
	fx := newFixture(weekly(days), weekly(days))

	slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(10, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(8, 9, 0), at(8, 9, 30), at(9, 8, 0), at(9, 8, 30)}, slots)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Before(slots[i]))
	}
}

func TestBlockedDateAndValidityWindow(t *testing.T) {
	row := weekly(map[time.Weekday]domain.DaySchedule{
		time.Monday:    window("09:00", "09:30"),
		time.Tuesday:   window("09:00", "09:30"),
		time.Wednesday: window("09:00", "09:30"),
	})

	t.Run("blocked date", func(t *testing.T) {
		blocked := row
		blocked.BlockedDates = []string{"2024-07-09"}
		fx := newFixture(blocked)
		slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(11, 0, 0)))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(8, 9, 0), at(10, 9, 0)}, slots)
	})

	t.Run("validity window", func(t *testing.T) {
		bounded := row
		from, to := at(9, 0, 0), at(9, 0, 0)
		bounded.StartDate, bounded.EndDate = &from, &to
		fx := newFixture(bounded)
		slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(11, 0, 0)))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(9, 9, 0)}, slots)
	})
}

// The fake applies the "assignee or unassigned" rule itself; the SQL predicate
// is covered by the postgres repository tests.
func TestAssigneeFilter(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	global := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "09:30")})
	aliceRow := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("10:00", "10:30")})
	aliceRow.AssignedToUserID = &alice
	bobRow := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("11:00", "11:30")})
	bobRow.AssignedToUserID = &bob

	fx := newFixture(global, aliceRow, bobRow)
	q := query(at(8, 0, 0), at(9, 0, 0))

	all, err := fx.generator().GenerateSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(8, 9, 0), at(8, 10, 0), at(8, 11, 0)}, all)

	q.AssignedToUserID = &alice
	mine, err := fx.generator().GenerateSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, &alice, fx.availability.seenAssignee)
	assert.Equal(t, []time.Time{at(8, 9, 0), at(8, 10, 0)}, mine)
}

func TestDefaultZonePriority(t *testing.T) {
	row := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "09:30")})
	user := uuid.New()

	cases := []struct {
		name      string
		directory *fakeDirectory
		assignee  *uuid.UUID
		request   string
		want      time.Time
	}{
		{"user zone wins", &fakeDirectory{userZone: "America/New_York", tenantZone: "Europe/London"}, &user, "Asia/Tokyo", at(8, 13, 0)},
		{"tenant zone without assignee", &fakeDirectory{userZone: "America/New_York", tenantZone: "Europe/London"}, nil, "Asia/Tokyo", at(8, 8, 0)},
		{"tenant zone when user has none", &fakeDirectory{tenantZone: "Europe/London"}, &user, "Asia/Tokyo", at(8, 8, 0)},
		{"request zone", &fakeDirectory{}, nil, "Asia/Tokyo", at(8, 0, 0)},
		{"utc fallback", &fakeDirectory{}, nil, "", at(8, 9, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(row)
			fx.directory = tc.directory
			q := query(at(8, 0, 0), at(9, 0, 0))
			q.AssignedToUserID = tc.assignee
			q.RequestTimezone = tc.request

			slots, err := fx.generator().GenerateSlots(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, []time.Time{tc.want}, slots)
		})
	}
}

func TestRowAndDayZones(t *testing.T) {
	row := weekly(map[time.Weekday]domain.DaySchedule{
		time.Monday:    {Enabled: true, StartTime: "09:00", EndTime: "09:30", Timezone: "America/Los_Angeles"},
		time.Tuesday:   window("09:00", "09:30"),
		time.Wednesday: {Enabled: true, StartTime: "09:00", EndTime: "09:30", Timezone: "Europe/Paris"},
	})
	fx := newFixture(row)
	fx.directory.tenantZone = "Asia/Tokyo"

	slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(11, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		at(8, 16, 0), // Monday 09:00 PDT
		at(9, 16, 0), // Tuesday inherits the row zone
		at(10, 7, 0), // Wednesday 09:00 CEST
	}, slots)
}

func TestEmptyResults(t *testing.T) {
	q := query(at(8, 0, 0), at(15, 0, 0))

	none, err := newFixture().generator().GenerateSlots(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	disabled := weekly(map[time.Weekday]domain.DaySchedule{time.Monday: {StartTime: "09:00", EndTime: "17:00"}})
	slots, err := newFixture(disabled).generator().GenerateSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, slots)

	inverted := query(at(9, 0, 0), at(8, 0, 0))
	slots, err = newFixture(weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "17:00")})).generator().GenerateSlots(context.Background(), inverted)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEndOfDayWindow(t *testing.T) {
	fx := newFixture(weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("23:00", "24:00")}))

	slots, err := fx.generator().GenerateSlots(context.Background(), query(at(8, 0, 0), at(9, 6, 0)))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(8, 23, 0), at(8, 23, 30)}, slots)
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	q := query(at(8, 0, 0), at(9, 0, 0))
	boom := errors.New("db unavailable")

	fx := newFixture()
	fx.availability.err = boom
	_, err := fx.generator().GenerateSlots(context.Background(), q)
	assert.ErrorIs(t, err, boom)

	fx = newFixture(weekly(map[time.Weekday]domain.DaySchedule{time.Monday: window("09:00", "10:00")}))
	fx.directory.err = boom
	_, err = fx.generator().GenerateSlots(context.Background(), q)
	assert.ErrorIs(t, err, boom)
}
