package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publishers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type publisher struct {
	name   string
	writer MessageWriter
	now    func() time.Time
}

func (p *publisher) publish(ctx context.Context, key uuid.UUID, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal message: %w", p.name, err)
	}
	record := kafka.Message{
		Key:   key[:],
		Value: value,
		Time:  p.now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("%s: write message: %w", p.name, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// DecisionPublisher publishes compliance decision events keyed by tenant.
type DecisionPublisher struct {
	publisher
}

// NewDecisionPublisher constructs a decision publisher for the given topic.
func NewDecisionPublisher(k *Kafka, topic string) *DecisionPublisher {
	return NewDecisionPublisherWithWriter(k.NewWriter(topic))
}

// NewDecisionPublisherWithWriter wraps an existing writer.
func NewDecisionPublisherWithWriter(w MessageWriter) *DecisionPublisher {
	return &DecisionPublisher{publisher{name: "decision publisher", writer: w, now: time.Now}}
}

// PublishDecision emits a decision event.
func (p *DecisionPublisher) PublishDecision(ctx context.Context, msg DecisionMessage) error {
	return p.publish(ctx, msg.TenantID, msg)
}

// ReschedulePublisher enqueues held sends for the rescheduler. Messages are
// keyed by decision so retries of one send stay ordered.
type ReschedulePublisher struct {
	publisher
}

// NewReschedulePublisher constructs a reschedule publisher for the given topic.
func NewReschedulePublisher(k *Kafka, topic string) *ReschedulePublisher {
	return NewReschedulePublisherWithWriter(k.NewWriter(topic))
}

// NewReschedulePublisherWithWriter wraps an existing writer.
func NewReschedulePublisherWithWriter(w MessageWriter) *ReschedulePublisher {
	return &ReschedulePublisher{publisher{name: "reschedule publisher", writer: w, now: time.Now}}
}

// PublishReschedule enqueues msg, stamping EnqueuedAt.
func (p *ReschedulePublisher) PublishReschedule(ctx context.Context, msg RescheduleMessage) error {
	msg.EnqueuedAt = p.now().UTC()
	return p.publish(ctx, msg.DecisionID, msg)
}

// ReleasePublisher announces sends that may proceed.
type ReleasePublisher struct {
	publisher
}

// NewReleasePublisher constructs a release publisher for the given topic.
func NewReleasePublisher(k *Kafka, topic string) *ReleasePublisher {
	return NewReleasePublisherWithWriter(k.NewWriter(topic))
}

// NewReleasePublisherWithWriter wraps an existing writer.
func NewReleasePublisherWithWriter(w MessageWriter) *ReleasePublisher {
	return &ReleasePublisher{publisher{name: "release publisher", writer: w, now: time.Now}}
}

// PublishRelease emits a release message.
func (p *ReleasePublisher) PublishRelease(ctx context.Context, msg ReleaseMessage) error {
	return p.publish(ctx, msg.DecisionID, msg)
}
