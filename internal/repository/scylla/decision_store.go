package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/domain"
)

const decisionsTable = `CREATE TABLE IF NOT EXISTS decisions_by_tenant (
	tenant_id text,
	bucket timestamp,
	created_at timestamp,
	decision_id text,
	kind text,
	subject_id text,
	journey_id text,
	candidate_at timestamp,
	outcome text,
	action text,
	reschedule_at timestamp,
	event_type_id text,
	PRIMARY KEY ((tenant_id, bucket), created_at, decision_id)
) WITH CLUSTERING ORDER BY (created_at DESC, decision_id ASC)`

// DecisionStore persists compliance decisions in Scylla, partitioned by tenant and UTC day.
type DecisionStore struct {
	session *gocql.Session
	ttl     time.Duration
	logger  *zap.Logger
}

// NewDecisionStore creates a new decision store. A zero ttl keeps rows forever.
func NewDecisionStore(session *gocql.Session, ttl time.Duration, logger *zap.Logger) *DecisionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionStore{session: session, ttl: ttl, logger: logger}
}

// EnsureSchema creates the decisions table when missing.
func (s *DecisionStore) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(decisionsTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("decision store: ensure schema: %w", err)
	}
	return nil
}

// Record inserts a decision.
func (s *DecisionStore) Record(ctx context.Context, decision domain.Decision) error {
	var rescheduleAt *time.Time
	if !decision.Outcome.At.IsZero() {
		at := decision.Outcome.At.UTC()
		rescheduleAt = &at
	}
	var eventTypeID *string
	if decision.Outcome.EventTypeID != nil {
		id := decision.Outcome.EventTypeID.String()
		eventTypeID = &id
	}

	if err := s.session.Query(`INSERT INTO decisions_by_tenant (tenant_id, bucket, created_at, decision_id, kind, subject_id, journey_id, candidate_at, outcome, action, reschedule_at, event_type_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) USING TTL ?`,
		decision.TenantID.String(), bucketDate(decision.CreatedAt), decision.CreatedAt.UTC(), decision.ID.String(),
		string(decision.Kind), decision.SubjectID, decision.JourneyID, decision.CandidateAt.UTC(),
		string(decision.Outcome.Kind), decision.Outcome.Action, rescheduleAt, eventTypeID,
		int(s.ttl/time.Second),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("decision store: insert: %w", err)
	}
	return nil
}

// ListByTenant lists one UTC day of decisions, newest first, with pagination.
func (s *DecisionStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, day time.Time, limit int, pagingState []byte) ([]domain.Decision, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT created_at, decision_id, kind, subject_id, journey_id, candidate_at, outcome, action, reschedule_at, event_type_id
		FROM decisions_by_tenant WHERE tenant_id = ? AND bucket = ?`, tenantID.String(), bucketDate(day)).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	decisions := make([]domain.Decision, 0, limit)

	var (
		created      time.Time
		idStr        string
		kind         string
		subjectID    string
		journeyID    string
		candidateAt  time.Time
		outcome      string
		action       string
		rescheduleAt *time.Time
		eventTypeStr *string
	)

	for iter.Scan(&created, &idStr, &kind, &subjectID, &journeyID, &candidateAt, &outcome, &action, &rescheduleAt, &eventTypeStr) {
		id, err := uuid.Parse(idStr)
		if err != nil {
			s.logger.Warn("decision store: skipping row with bad id", zap.String("decision_id", idStr), zap.Error(err))
			continue
		}

		decision := domain.Decision{
			ID:          id,
			TenantID:    tenantID,
			Kind:        domain.CheckKind(kind),
			SubjectID:   subjectID,
			JourneyID:   journeyID,
			CandidateAt: candidateAt.UTC(),
			CreatedAt:   created.UTC(),
			Outcome: domain.Outcome{
				Kind:   domain.OutcomeKind(outcome),
				Action: action,
			},
		}
		if rescheduleAt != nil {
			decision.Outcome.At = rescheduleAt.UTC()
		}
		if eventTypeStr != nil {
			if eventTypeID, err := uuid.Parse(*eventTypeStr); err == nil {
				decision.Outcome.EventTypeID = &eventTypeID
			}
		}
		decisions = append(decisions, decision)

		rescheduleAt = nil
		eventTypeStr = nil
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("decision store: iter close: %w", err)
	}

	return decisions, iter.PageState(), nil
}

func bucketDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
