// Package reschedule holds rescheduled sends until their release time and
// re-evaluates them before letting them through.
package reschedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/queue"
	"github.com/acme/engagement-compliance/internal/service/gate"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
	"github.com/acme/engagement-compliance/pkg/logger"
)

// Reader is the subset of *kafka.Reader the worker consumes with.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Evaluator re-runs the compliance gate.
type Evaluator interface {
	Evaluate(ctx context.Context, in gate.EvaluateInput) (*domain.Decision, error)
}

// ReleasePublisher announces sends that may proceed.
type ReleasePublisher interface {
	PublishRelease(ctx context.Context, msg queue.ReleaseMessage) error
}

// Requeuer puts a message back on a reschedule topic.
type Requeuer interface {
	PublishReschedule(ctx context.Context, msg queue.RescheduleMessage) error
}

// Options tune the worker. A zero MaxWait waits the full delay in one go; a
// zero MaxAttempts never gives up. RetryInitial and RetryMax bound the backoff
// between attempts at a message that failed transiently.
type Options struct {
	MaxWait      time.Duration
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// Worker consumes reschedule messages.
type Worker struct {
	reader      Reader
	gate        Evaluator
	releases    ReleasePublisher
	requeue     Requeuer
	deadLetters Requeuer
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a reschedule worker. deadLetters may be nil, in which case
// exhausted messages are logged and dropped.
func New(reader Reader, evaluator Evaluator, releases ReleasePublisher, requeue, deadLetters Requeuer, opts Options, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}
	return &Worker{
		reader:      reader,
		gate:        evaluator,
		releases:    releases,
		requeue:     requeue,
		deadLetters: deadLetters,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("reschedule worker: fetch", zap.Error(err))
			continue
		}

		// Committing a later offset would skip a failed message, so it is
		// retried in place until it succeeds or ctx ends.
		if err := w.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reschedule worker: process offset %d: %w", msg.Offset, err)
		}

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			w.logger.Error("reschedule worker: commit", zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.opts.RetryInitial
	policy.MaxInterval = w.opts.RetryMax
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		return w.handle(ctx, msg)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		w.logger.Warn("reschedule worker: handle failed, retrying",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("backoff", next),
			zap.Error(err))
	})
}

// handle processes one message. A nil return means the message may be committed.
func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	var held queue.RescheduleMessage
	if err := json.Unmarshal(msg.Value, &held); err != nil {
		w.logger.Error("reschedule worker: unmarshal", zap.Error(err))
		return nil
	}

	ctx, span := otel.Tracer("compliance.rescheduler").Start(ctx, "reschedule.release", trace.WithAttributes(
		attribute.String("tenant.id", held.TenantID.String()),
		attribute.String("decision.id", held.DecisionID.String()),
		attribute.Int("attempt", held.Attempt),
	))
	defer span.End()

	if w.opts.MaxAttempts > 0 && held.Attempt > w.opts.MaxAttempts {
		return w.deadLetter(ctx, held)
	}

	wait := held.ReleaseAt.Sub(w.now())
	if w.opts.MaxWait > 0 && wait > w.opts.MaxWait {
		if err := w.sleep(ctx, w.opts.MaxWait); err != nil {
			return err
		}
		if err := w.requeue.PublishReschedule(ctx, held); err != nil {
			span.RecordError(err)
			return fmt.Errorf("reschedule worker: requeue: %w", err)
		}
		return nil
	}
	if err := w.sleep(ctx, wait); err != nil {
		return err
	}

	decision, err := w.gate.Evaluate(ctx, gate.EvaluateInput{
		TenantID:          held.TenantID,
		Kind:              domain.CheckKind(held.Kind),
		Candidate:         held.ReleaseAt,
		Timezone:          held.Timezone,
		PriorSubmissionAt: held.PriorSubmissionAt,
		SubjectID:         held.SubjectID,
		JourneyID:         held.JourneyID,
		Attempt:           held.Attempt,
		Metadata:          held.Metadata,
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, apperrors.ErrValidation) {
			logger.WithTrace(ctx, w.logger).Error("reschedule worker: dropping invalid message",
				zap.String("decision_id", held.DecisionID.String()), zap.Error(err))
			return nil
		}
		return fmt.Errorf("reschedule worker: evaluate: %w", err)
	}
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome.Kind)))

	switch decision.Outcome.Kind {
	case domain.OutcomeContinue:
		release := queue.ReleaseMessage{
			DecisionID: decision.ID,
			TenantID:   held.TenantID,
			Kind:       held.Kind,
			SubjectID:  held.SubjectID,
			JourneyID:  held.JourneyID,
			OriginalAt: held.OriginalAt,
			ReleasedAt: w.now().UTC(),
			Attempt:    held.Attempt,
			Metadata:   held.Metadata,
		}
		if err := w.releases.PublishRelease(ctx, release); err != nil {
			span.RecordError(err)
			return fmt.Errorf("reschedule worker: publish release: %w", err)
		}
	case domain.OutcomeReschedule:
		// The gate already enqueued the next hold.
	default:
		logger.WithTrace(ctx, w.logger).Info("reschedule worker: send not released",
			zap.String("decision_id", decision.ID.String()),
			zap.String("outcome", string(decision.Outcome.Kind)),
			zap.String("action", decision.Outcome.Action))
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, held queue.RescheduleMessage) error {
	logger.WithTrace(ctx, w.logger).Warn("reschedule worker: attempts exhausted",
		zap.String("decision_id", held.DecisionID.String()), zap.Int("attempt", held.Attempt))
	if w.deadLetters == nil {
		return nil
	}
	if err := w.deadLetters.PublishReschedule(ctx, held); err != nil {
		return fmt.Errorf("reschedule worker: dead letter: %w", err)
	}
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
