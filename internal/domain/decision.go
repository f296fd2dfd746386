package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies a compliance decision.
type OutcomeKind string

const (
	OutcomeBlock           OutcomeKind = "block"
	OutcomeSkip            OutcomeKind = "skip"
	OutcomePause           OutcomeKind = "pause"
	OutcomeUseDefaultEvent OutcomeKind = "useDefaultEvent"
	OutcomeReschedule      OutcomeKind = "reschedule"
	OutcomeContinue        OutcomeKind = "continue"
)

// Outcome is the result of mapping a configured action to what the caller does next.
// At is set only for reschedule; EventTypeID only for useDefaultEvent.
type Outcome struct {
	Kind        OutcomeKind
	Action      string
	At          time.Time
	EventTypeID *uuid.UUID
}

// CheckKind names the rule family a decision was made for.
type CheckKind string

const (
	CheckAfterHours   CheckKind = "after_hours"
	CheckTCPA         CheckKind = "tcpa"
	CheckResubmission CheckKind = "resubmission"
)

// Valid reports whether k is a known check family.
func (k CheckKind) Valid() bool {
	switch k {
	case CheckAfterHours, CheckTCPA, CheckResubmission:
		return true
	}
	return false
}

// Decision is an audited compliance evaluation.
type Decision struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Kind        CheckKind
	SubjectID   string
	JourneyID   string
	CandidateAt time.Time
	Outcome     Outcome
	CreatedAt   time.Time
}
