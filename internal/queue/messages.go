package queue

import (
	"time"

	"github.com/google/uuid"
)

// DecisionMessage is emitted for every compliance decision.
type DecisionMessage struct {
	DecisionID   uuid.UUID  `json:"decision_id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Kind         string     `json:"kind"`
	SubjectID    string     `json:"subject_id,omitempty"`
	JourneyID    string     `json:"journey_id,omitempty"`
	CandidateAt  time.Time  `json:"candidate_at"`
	Outcome      string     `json:"outcome"`
	Action       string     `json:"action,omitempty"`
	RescheduleAt *time.Time `json:"reschedule_at,omitempty"`
	EventTypeID  *uuid.UUID `json:"event_type_id,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// RescheduleMessage asks the rescheduler to hold a send until ReleaseAt and
// then evaluate it again.
type RescheduleMessage struct {
	DecisionID        uuid.UUID         `json:"decision_id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Kind              string            `json:"kind"`
	SubjectID         string            `json:"subject_id,omitempty"`
	JourneyID         string            `json:"journey_id,omitempty"`
	Timezone          string            `json:"timezone,omitempty"`
	OriginalAt        time.Time         `json:"original_at"`
	ReleaseAt         time.Time         `json:"release_at"`
	Attempt           int               `json:"attempt"`
	PriorSubmissionAt *time.Time        `json:"prior_submission_at,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	EnqueuedAt        time.Time         `json:"enqueued_at"`
}

// ReleaseMessage tells downstream senders a held send may now proceed.
type ReleaseMessage struct {
	DecisionID uuid.UUID         `json:"decision_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	Kind       string            `json:"kind"`
	SubjectID  string            `json:"subject_id,omitempty"`
	JourneyID  string            `json:"journey_id,omitempty"`
	OriginalAt time.Time         `json:"original_at"`
	ReleasedAt time.Time         `json:"released_at"`
	Attempt    int               `json:"attempt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
