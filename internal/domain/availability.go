package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSlotDurationMinutes applies when an event type has no duration.
const DefaultSlotDurationMinutes = 30

// DaySchedule is one weekday's bookable window in "HH:mm" wall-clock time.
type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Timezone  string `json:"timezone,omitempty"`
}

// WeeklySchedule maps weekdays to their windows. It is stored as JSON keyed by
// lower-case weekday name.
type WeeklySchedule map[time.Weekday]DaySchedule

// MarshalJSON encodes the schedule keyed by weekday name.
func (w WeeklySchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]DaySchedule, len(w))
	for day, sched := range w {
		out[strings.ToLower(day.String())] = sched
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a schedule keyed by weekday name.
func (w *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]DaySchedule
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(WeeklySchedule, len(raw))
	for name, sched := range raw {
		day, err := ParseWeekday(name)
		if err != nil {
			return fmt.Errorf("weekly schedule: %w", err)
		}
		out[day] = sched
	}
	*w = out
	return nil
}

// Availability is a weekly-recurring bookable window for an event type.
// A nil AssignedToUserID applies the row to every assignee.
type Availability struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	EventTypeID      uuid.UUID
	AssignedToUserID *uuid.UUID
	WeeklySchedule   WeeklySchedule
	StartDate        *time.Time
	EndDate          *time.Time
	BlockedDates     []string
	MaxEventsPerSlot int
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Capacity returns the number of concurrent bookings a slot accepts.
func (a Availability) Capacity() int {
	if a.MaxEventsPerSlot <= 0 {
		return 1
	}
	return a.MaxEventsPerSlot
}

// IsBlocked reports whether the YYYY-MM-DD date is blocked.
func (a Availability) IsBlocked(date string) bool {
	for _, d := range a.BlockedDates {
		if strings.TrimSpace(d) == date {
			return true
		}
	}
	return false
}

// EventStatus enumerates calendar event states.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "SCHEDULED"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// CalendarEvent is an existing booking. It is only read for capacity checks.
type CalendarEvent struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	EventTypeID      uuid.UUID
	AssignedToUserID *uuid.UUID
	StartTime        time.Time
	EndTime          time.Time
	Status           EventStatus
}

// Overlaps reports whether the event intersects [start, end).
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.StartTime.Before(end) && e.EndTime.After(start)
}

// EventType describes a bookable kind of event.
type EventType struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	DurationMinutes int
}

// SlotDuration returns the slot length for the event type.
func (e *EventType) SlotDuration() time.Duration {
	if e == nil || e.DurationMinutes <= 0 {
		return DefaultSlotDurationMinutes * time.Minute
	}
	return time.Duration(e.DurationMinutes) * time.Minute
}
