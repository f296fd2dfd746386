// Package availability expands weekly availability into bookable slot instants.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/repository"
	"github.com/acme/engagement-compliance/internal/timezone"
)

// endOfDay is accepted as a window end meaning the following midnight.
const endOfDay = "24:00"

// SlotQuery selects the slots to generate. RangeEnd is exclusive.
type SlotQuery struct {
	TenantID         uuid.UUID
	EventTypeID      uuid.UUID
	RangeStart       time.Time
	RangeEnd         time.Time
	AssignedToUserID *uuid.UUID
	RequestTimezone  string
}

// Generator builds slot lists from availability rows and booked events.
type Generator struct {
	availability repository.AvailabilityRepository
	events       repository.CalendarEventRepository
	eventTypes   repository.EventTypeRepository
	directory    repository.DirectoryRepository
	tz           *timezone.Resolver
	logger       *zap.Logger
}

// NewGenerator constructs a generator. eventTypes and directory may be nil, in
// which case slots are 30 minutes long and only the request zone is consulted.
func NewGenerator(
	availability repository.AvailabilityRepository,
	events repository.CalendarEventRepository,
	eventTypes repository.EventTypeRepository,
	directory repository.DirectoryRepository,
	tz *timezone.Resolver,
	logger *zap.Logger,
) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		availability: availability,
		events:       events,
		eventTypes:   eventTypes,
		directory:    directory,
		tz:           tz,
		logger:       logger,
	}
}

// GenerateSlots returns the sorted, distinct UTC instants in
// [RangeStart, RangeEnd) at which a new booking could start.
func (g *Generator) GenerateSlots(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "GenerateSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", q.TenantID.String()),
		attribute.String("event_type_id", q.EventTypeID.String()),
	)

	slots := []time.Time{}
	if !q.RangeEnd.After(q.RangeStart) {
		return slots, nil
	}

	rows, err := g.availability.ListActive(ctx, q.TenantID, q.EventTypeID, q.AssignedToUserID)
	if err != nil {
		return nil, fmt.Errorf("slots: load availability: %w", err)
	}
	if len(rows) == 0 {
		return slots, nil
	}

	defaultZone, err := g.defaultZone(ctx, q)
	if err != nil {
		return nil, err
	}

	duration, err := g.slotDuration(ctx, q)
	if err != nil {
		return nil, err
	}

	booked, err := g.events.ListScheduled(ctx, q.TenantID, q.EventTypeID, q.RangeStart, q.RangeEnd)
	if err != nil {
		return nil, fmt.Errorf("slots: load calendar events: %w", err)
	}

	seen := make(map[time.Time]struct{})
	for _, row := range rows {
		for _, slot := range g.rowSlots(row, defaultZone, duration, booked, q) {
			if _, dup := seen[slot]; dup {
				continue
			}
			seen[slot] = struct{}{}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

func (g *Generator) rowSlots(row domain.Availability, defaultZone string, duration time.Duration, booked []domain.CalendarEvent, q SlotQuery) []time.Time {
	zone := rowZone(row, defaultZone)
	first := g.tz.DateParts(q.RangeStart.Add(-24*time.Hour), zone)
	last := g.tz.DateParts(q.RangeEnd.Add(24*time.Hour), zone)

	var out []time.Time
	for day := first; !day.After(last); day = day.AddDays(1) {
		if row.IsBlocked(day.String()) || !withinValidity(row, day) {
			continue
		}
		sched, ok := row.WeeklySchedule[day.Weekday()]
		if !ok || !sched.Enabled {
			continue
		}

		dayZone := timezone.First(timezone.Static(sched.Timezone), timezone.Static(zone))
		windowStart, windowEnd, ok := g.window(row, day, sched, dayZone)
		if !ok {
			continue
		}

		for slot := windowStart; !slot.Add(duration).After(windowEnd); slot = slot.Add(duration) {
			if slot.Before(q.RangeStart) || !slot.Before(q.RangeEnd) {
				continue
			}
			if overlapping(booked, slot, slot.Add(duration)) >= row.Capacity() {
				continue
			}
			out = append(out, slot)
		}
	}
	return out
}

func (g *Generator) window(row domain.Availability, day timezone.Date, sched domain.DaySchedule, zone string) (time.Time, time.Time, bool) {
	sh, sm, err := domain.ParseClock(sched.StartTime)
	if err != nil {
		g.logger.Warn("slots: invalid start time, skipping day",
			zap.String("availability_id", row.ID.String()), zap.String("date", day.String()), zap.Error(err))
		return time.Time{}, time.Time{}, false
	}
	start := g.tz.ToUTC(day, sh, sm, zone)

	if strings.TrimSpace(sched.EndTime) == endOfDay {
		return start, g.tz.ToUTC(day.AddDays(1), 0, 0, zone), true
	}
	eh, em, err := domain.ParseClock(sched.EndTime)
	if err != nil {
		g.logger.Warn("slots: invalid end time, skipping day",
			zap.String("availability_id", row.ID.String()), zap.String("date", day.String()), zap.Error(err))
		return time.Time{}, time.Time{}, false
	}
	return start, g.tz.ToUTC(day, eh, em, zone), true
}

// defaultZone resolves the schedule zone: assignee, tenant, request, then UTC.
// Missing directory rows are skipped; other lookup failures abort.
func (g *Generator) defaultZone(ctx context.Context, q SlotQuery) (string, error) {
	var lookupErr error
	lookup := func(fetch func() (string, error)) timezone.Source {
		return func() string {
			if lookupErr != nil || g.directory == nil {
				return ""
			}
			zone, err := fetch()
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				lookupErr = err
				return ""
			}
			return zone
		}
	}

	var userSource timezone.Source
	if q.AssignedToUserID != nil {
		userSource = lookup(func() (string, error) {
			return g.directory.UserTimezone(ctx, q.TenantID, *q.AssignedToUserID)
		})
	}

	zone := timezone.First(
		userSource,
		lookup(func() (string, error) { return g.directory.TenantTimezone(ctx, q.TenantID) }),
		timezone.Static(q.RequestTimezone),
		timezone.Static(timezone.UTC),
	)
	if lookupErr != nil {
		return "", fmt.Errorf("slots: resolve zone: %w", lookupErr)
	}
	return zone, nil
}

func (g *Generator) slotDuration(ctx context.Context, q SlotQuery) (time.Duration, error) {
	if g.eventTypes == nil {
		return domain.DefaultSlotDurationMinutes * time.Minute, nil
	}
	eventType, err := g.eventTypes.Get(ctx, q.TenantID, q.EventTypeID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("slots: load event type: %w", err)
	}
	return eventType.SlotDuration(), nil
}

// rowZone is the zone of the first enabled weekday, Monday first, that names one.
func rowZone(row domain.Availability, fallback string) string {
	for _, day := range domain.WeekOrder {
		sched, ok := row.WeeklySchedule[day]
		if ok && sched.Enabled && strings.TrimSpace(sched.Timezone) != "" {
			return strings.TrimSpace(sched.Timezone)
		}
	}
	return fallback
}

func withinValidity(row domain.Availability, day timezone.Date) bool {
	if row.StartDate != nil && day.Before(timezone.DateOf(row.StartDate.UTC())) {
		return false
	}
	if row.EndDate != nil && day.After(timezone.DateOf(row.EndDate.UTC())) {
		return false
	}
	return true
}

func overlapping(events []domain.CalendarEvent, start, end time.Time) int {
	n := 0
	for _, e := range events {
		if e.Status == domain.EventStatusScheduled && e.Overlaps(start, end) {
			n++
		}
	}
	return n
}
