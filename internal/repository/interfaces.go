package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/engagement-compliance/internal/domain"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// ExecutionRulesRepository persists the single rules row per tenant.
type ExecutionRulesRepository interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, error)
	// CreateIfAbsent inserts rules unless a row already exists for the tenant.
	CreateIfAbsent(ctx context.Context, rules *domain.ExecutionRules) error
	// Update applies mutate to the stored row (seeded when absent) atomically.
	Update(ctx context.Context, seed *domain.ExecutionRules, mutate func(*domain.ExecutionRules) error) (*domain.ExecutionRules, error)
}

// AvailabilityRepository reads weekly availability rows.
type AvailabilityRepository interface {
	// ListActive returns active rows for the event type. A non-nil assignee
	// restricts results to that assignee's rows plus unassigned rows.
	ListActive(ctx context.Context, tenantID, eventTypeID uuid.UUID, assignee *uuid.UUID) ([]domain.Availability, error)
}

// CalendarEventRepository reads booked events for capacity checks.
type CalendarEventRepository interface {
	ListScheduled(ctx context.Context, tenantID, eventTypeID uuid.UUID, from, to time.Time) ([]domain.CalendarEvent, error)
}

// EventTypeRepository reads event type metadata.
type EventTypeRepository interface {
	Get(ctx context.Context, tenantID, eventTypeID uuid.UUID) (*domain.EventType, error)
}

// DirectoryRepository looks up stored zones for tenants and users.
// Both return ErrNotFound when the row is missing; an empty zone is not an error.
type DirectoryRepository interface {
	TenantTimezone(ctx context.Context, tenantID uuid.UUID) (string, error)
	UserTimezone(ctx context.Context, tenantID, userID uuid.UUID) (string, error)
}

// DecisionStore persists the compliance decision audit log.
type DecisionStore interface {
	Record(ctx context.Context, decision domain.Decision) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, day time.Time, limit int, pagingState []byte) ([]domain.Decision, []byte, error)
}
