package domain

import (
	"time"

	"github.com/google/uuid"
)

// AfterHoursAction enumerates what happens to a send attempted outside business hours.
type AfterHoursAction string

const (
	AfterHoursRescheduleNextAvailable   AfterHoursAction = "RESCHEDULE_NEXT_AVAILABLE"
	AfterHoursRescheduleNextBusinessDay AfterHoursAction = "RESCHEDULE_NEXT_BUSINESS_DAY"
	AfterHoursRescheduleSpecificTime    AfterHoursAction = "RESCHEDULE_SPECIFIC_TIME"
	AfterHoursSkipNode                  AfterHoursAction = "SKIP_NODE"
	AfterHoursPauseJourney              AfterHoursAction = "PAUSE_JOURNEY"
	AfterHoursDefaultEvent              AfterHoursAction = "DEFAULT_EVENT"
)

// Valid reports whether a is a known after-hours action.
func (a AfterHoursAction) Valid() bool {
	switch a {
	case AfterHoursRescheduleNextAvailable, AfterHoursRescheduleNextBusinessDay, AfterHoursRescheduleSpecificTime,
		AfterHoursSkipNode, AfterHoursPauseJourney, AfterHoursDefaultEvent:
		return true
	}
	return false
}

// Reschedules reports whether a moves the send to a later time.
func (a AfterHoursAction) Reschedules() bool {
	switch a {
	case AfterHoursRescheduleNextAvailable, AfterHoursRescheduleNextBusinessDay, AfterHoursRescheduleSpecificTime:
		return true
	}
	return false
}

// TCPAAction enumerates what happens when a send would violate TCPA calling rules.
type TCPAAction string

const (
	TCPARescheduleNextAvailable   TCPAAction = "RESCHEDULE_NEXT_AVAILABLE"
	TCPARescheduleNextBusinessDay TCPAAction = "RESCHEDULE_NEXT_BUSINESS_DAY"
	TCPASkipNode                  TCPAAction = "SKIP_NODE"
	TCPAPauseJourney              TCPAAction = "PAUSE_JOURNEY"
	TCPADefaultEvent              TCPAAction = "DEFAULT_EVENT"
	TCPABlock                     TCPAAction = "BLOCK"
)

// Valid reports whether a is a known TCPA action.
func (a TCPAAction) Valid() bool {
	switch a {
	case TCPARescheduleNextAvailable, TCPARescheduleNextBusinessDay, TCPASkipNode,
		TCPAPauseJourney, TCPADefaultEvent, TCPABlock:
		return true
	}
	return false
}

// ResubmissionAction enumerates what happens when a lead re-enters within the detection window.
type ResubmissionAction string

const (
	ResubmissionSkipDuplicate   ResubmissionAction = "SKIP_DUPLICATE"
	ResubmissionRescheduleDelay ResubmissionAction = "RESCHEDULE_DELAY"
	ResubmissionPauseJourney    ResubmissionAction = "PAUSE_JOURNEY"
	ResubmissionDefaultEvent    ResubmissionAction = "DEFAULT_EVENT"
	ResubmissionContinue        ResubmissionAction = "CONTINUE"
)

// Valid reports whether a is a known resubmission action.
func (a ResubmissionAction) Valid() bool {
	switch a {
	case ResubmissionSkipDuplicate, ResubmissionRescheduleDelay, ResubmissionPauseJourney,
		ResubmissionDefaultEvent, ResubmissionContinue:
		return true
	}
	return false
}

// BusinessHours is a half-open [StartHour, EndHour) local window on allowed weekdays.
// An empty DaysOfWeek allows every day.
type BusinessHours struct {
	StartHour  int
	EndHour    int
	DaysOfWeek []time.Weekday
	Timezone   string
}

// Allows reports whether day is an allowed weekday.
func (b BusinessHours) Allows(day time.Weekday) bool {
	if len(b.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range b.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// ExecutionRules holds a tenant's compliance configuration. There is exactly
// one row per tenant.
type ExecutionRules struct {
	TenantID uuid.UUID

	EnableAfterHoursHandling   bool
	EnableTCPAHandling         bool
	EnableResubmissionHandling bool

	AfterHoursAction             AfterHoursAction
	AfterHoursBusinessHours      *BusinessHours
	AfterHoursRescheduleTime     string
	AfterHoursDefaultEventTypeID *uuid.UUID

	TCPAViolationAction    TCPAAction
	TCPARescheduleTime     string
	TCPADefaultEventTypeID *uuid.UUID

	ResubmissionAction               ResubmissionAction
	ResubmissionDetectionWindowHours int
	ResubmissionRescheduleDelayHours int
	ResubmissionDefaultEventTypeID   *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Default rule values applied when a tenant has no stored row.
const (
	DefaultBusinessStartHour         = 8
	DefaultBusinessEndHour           = 21
	DefaultDetectionWindowHours      = 24
	DefaultRescheduleDelayHours      = 24
	DefaultBusinessHoursTimezoneName = "America/New_York"
)

// DefaultBusinessHours is 08:00-21:00, Monday to Friday, zone left to the caller.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour:  DefaultBusinessStartHour,
		EndHour:    DefaultBusinessEndHour,
		DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// DefaultExecutionRules returns the conservative defaults for a tenant.
func DefaultExecutionRules(tenantID uuid.UUID, now time.Time) *ExecutionRules {
	bh := DefaultBusinessHours()
	return &ExecutionRules{
		TenantID:                         tenantID,
		EnableAfterHoursHandling:         true,
		EnableTCPAHandling:               true,
		EnableResubmissionHandling:       true,
		AfterHoursAction:                 AfterHoursRescheduleNextAvailable,
		AfterHoursBusinessHours:          &bh,
		TCPAViolationAction:              TCPABlock,
		ResubmissionAction:               ResubmissionSkipDuplicate,
		ResubmissionDetectionWindowHours: DefaultDetectionWindowHours,
		ResubmissionRescheduleDelayHours: DefaultRescheduleDelayHours,
		CreatedAt:                        now,
		UpdatedAt:                        now,
	}
}

// Clone returns a deep copy, so cached values cannot be mutated by callers.
func (r *ExecutionRules) Clone() *ExecutionRules {
	if r == nil {
		return nil
	}
	out := *r
	if r.AfterHoursBusinessHours != nil {
		bh := *r.AfterHoursBusinessHours
		bh.DaysOfWeek = append([]time.Weekday(nil), r.AfterHoursBusinessHours.DaysOfWeek...)
		out.AfterHoursBusinessHours = &bh
	}
	out.AfterHoursDefaultEventTypeID = cloneID(r.AfterHoursDefaultEventTypeID)
	out.TCPADefaultEventTypeID = cloneID(r.TCPADefaultEventTypeID)
	out.ResubmissionDefaultEventTypeID = cloneID(r.ResubmissionDefaultEventTypeID)
	return &out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
