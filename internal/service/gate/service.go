// Package gate evaluates a candidate send against a tenant's compliance rules,
// records the decision and hands rescheduled sends to the rescheduler.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/compliance"
	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/queue"
	"github.com/acme/engagement-compliance/internal/repository"
	"github.com/acme/engagement-compliance/internal/service/common"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
	"github.com/acme/engagement-compliance/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RulesSource returns the effective rules of a tenant.
type RulesSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, error)
}

// DecisionPublisher emits decision events.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, msg queue.DecisionMessage) error
}

// ReschedulePublisher enqueues held sends.
type ReschedulePublisher interface {
	PublishReschedule(ctx context.Context, msg queue.RescheduleMessage) error
}

// Service evaluates candidate sends.
type Service struct {
	rules       RulesSource
	resolver    *compliance.ActionResolver
	decisions   repository.DecisionStore
	events      DecisionPublisher
	reschedules ReschedulePublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewService builds the gate. events and reschedules may be nil, in which case
// nothing is published.
func NewService(
	rules RulesSource,
	resolver *compliance.ActionResolver,
	decisions repository.DecisionStore,
	events DecisionPublisher,
	reschedules ReschedulePublisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rules:       rules,
		resolver:    resolver,
		decisions:   decisions,
		events:      events,
		reschedules: reschedules,
		logger:      logger,
		now:         time.Now,
	}
}

// EvaluateInput describes one candidate send.
type EvaluateInput struct {
	TenantID  uuid.UUID
	Kind      domain.CheckKind
	Candidate time.Time
	// Timezone is the recipient (or tenant) zone; empty falls back to the rules zone.
	Timezone          string
	PriorSubmissionAt *time.Time
	// TCPAViolation overrides window-based detection when the caller already knows.
	TCPAViolation *bool
	SubjectID     string
	JourneyID     string
	// Attempt counts how many times this send has already been held.
	Attempt  int
	Metadata map[string]string
}

// Evaluate resolves the outcome for in, records it and returns the decision.
func (s *Service) Evaluate(ctx context.Context, in EvaluateInput) (*domain.Decision, error) {
	if in.TenantID == uuid.Nil {
		return nil, apperrors.Validationf("tenant id is required")
	}
	if !in.Kind.Valid() {
		return nil, apperrors.Validationf("unknown check kind %q", in.Kind)
	}

	ctx, span := otel.Tracer("compliance.gate").Start(ctx, "gate.evaluate", trace.WithAttributes(
		attribute.String("tenant.id", in.TenantID.String()),
		attribute.String("check.kind", string(in.Kind)),
	))
	defer span.End()

	rules, err := s.rules.Get(ctx, in.TenantID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gate: load rules: %w", err)
	}

	now := s.now().UTC()
	candidate := in.Candidate
	if candidate.IsZero() {
		candidate = now
	}

	decision := &domain.Decision{
		ID:          uuid.New(),
		TenantID:    in.TenantID,
		Kind:        in.Kind,
		SubjectID:   in.SubjectID,
		JourneyID:   in.JourneyID,
		CandidateAt: candidate.UTC(),
		Outcome:     s.resolve(rules, in, candidate),
		CreatedAt:   now,
	}
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome.Kind)))

	if err := s.decisions.Record(ctx, *decision); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gate: record decision: %w", err)
	}

	if decision.Outcome.Kind == domain.OutcomeReschedule && s.reschedules != nil {
		msg := queue.RescheduleMessage{
			DecisionID:        decision.ID,
			TenantID:          decision.TenantID,
			Kind:              string(decision.Kind),
			SubjectID:         decision.SubjectID,
			JourneyID:         decision.JourneyID,
			Timezone:          in.Timezone,
			OriginalAt:        decision.CandidateAt,
			ReleaseAt:         decision.Outcome.At,
			Attempt:           in.Attempt + 1,
			PriorSubmissionAt: in.PriorSubmissionAt,
			Metadata:          in.Metadata,
		}
		if err := s.reschedules.PublishReschedule(ctx, msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("gate: enqueue reschedule: %w", err)
		}
	}

	if s.events != nil {
		if err := s.events.PublishDecision(ctx, decisionMessage(decision)); err != nil {
			logger.WithTrace(ctx, s.logger).Warn("gate: publish decision event",
				zap.String("decision_id", decision.ID.String()), zap.Error(err))
		}
	}

	return decision, nil
}

func (s *Service) resolve(rules *domain.ExecutionRules, in EvaluateInput, candidate time.Time) domain.Outcome {
	switch in.Kind {
	case domain.CheckAfterHours:
		return s.resolver.ResolveAfterHours(rules, candidate, in.Timezone)
	case domain.CheckTCPA:
		violation := s.resolver.IsTCPAViolation(rules, candidate, in.Timezone)
		if in.TCPAViolation != nil {
			violation = *in.TCPAViolation
		}
		if !violation {
			return domain.Outcome{Kind: domain.OutcomeContinue}
		}
		return s.resolver.ResolveTCPA(rules, compliance.TCPAContext{Candidate: candidate, Timezone: in.Timezone})
	default:
		if !s.resolver.IsResubmission(rules, in.PriorSubmissionAt, candidate) {
			return domain.Outcome{Kind: domain.OutcomeContinue}
		}
		return s.resolver.ResolveResubmission(rules, compliance.ResubmissionContext{
			Candidate:         candidate,
			PriorSubmissionAt: in.PriorSubmissionAt,
		})
	}
}

// ListDecisionsResult is one page of recorded decisions.
type ListDecisionsResult struct {
	Decisions     []domain.Decision
	NextPageToken string
}

// ListDecisions lists one UTC day of a tenant's decisions, newest first.
func (s *Service) ListDecisions(ctx context.Context, tenantID uuid.UUID, day time.Time, limit int, pageToken string) (*ListDecisionsResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	pagingState, err := common.DecodePageToken(pageToken)
	if err != nil {
		return nil, apperrors.Validationf("invalid page token")
	}

	decisions, next, err := s.decisions.ListByTenant(ctx, tenantID, day, limit, pagingState)
	if err != nil {
		return nil, fmt.Errorf("gate: list decisions: %w", err)
	}

	return &ListDecisionsResult{Decisions: decisions, NextPageToken: common.EncodePageToken(next)}, nil
}

func decisionMessage(d *domain.Decision) queue.DecisionMessage {
	msg := queue.DecisionMessage{
		DecisionID:  d.ID,
		TenantID:    d.TenantID,
		Kind:        string(d.Kind),
		SubjectID:   d.SubjectID,
		JourneyID:   d.JourneyID,
		CandidateAt: d.CandidateAt,
		Outcome:     string(d.Outcome.Kind),
		Action:      d.Outcome.Action,
		EventTypeID: d.Outcome.EventTypeID,
		OccurredAt:  d.CreatedAt,
	}
	if !d.Outcome.At.IsZero() {
		at := d.Outcome.At.UTC()
		msg.RescheduleAt = &at
	}
	return msg
}
