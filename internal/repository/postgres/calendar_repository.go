package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/repository"
)

// CalendarEventRepository reads booked calendar events.
type CalendarEventRepository struct {
	db *sqlx.DB
}

// NewCalendarEventRepository constructs the repository.
func NewCalendarEventRepository(db *sqlx.DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

// ListScheduled returns SCHEDULED events whose start lies in [from, to].
func (r *CalendarEventRepository) ListScheduled(ctx context.Context, tenantID, eventTypeID uuid.UUID, from, to time.Time) ([]domain.CalendarEvent, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, tenant_id, event_type_id, assigned_to_user_id, start_time, end_time, status
		FROM calendar_events
		WHERE tenant_id = $1 AND event_type_id = $2 AND status = $3
		  AND start_time >= $4 AND start_time <= $5
		ORDER BY start_time ASC`,
		tenantID, eventTypeID, string(domain.EventStatusScheduled), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("calendar events: list scheduled: %w", err)
	}
	defer rows.Close()

	var events []domain.CalendarEvent
	for rows.Next() {
		var row struct {
			ID               uuid.UUID     `db:"id"`
			TenantID         uuid.UUID     `db:"tenant_id"`
			EventTypeID      uuid.UUID     `db:"event_type_id"`
			AssignedToUserID uuid.NullUUID `db:"assigned_to_user_id"`
			StartTime        time.Time     `db:"start_time"`
			EndTime          time.Time     `db:"end_time"`
			Status           string        `db:"status"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("calendar events: scan: %w", err)
		}
		events = append(events, domain.CalendarEvent{
			ID:               row.ID,
			TenantID:         row.TenantID,
			EventTypeID:      row.EventTypeID,
			AssignedToUserID: uuidPtr(row.AssignedToUserID),
			StartTime:        row.StartTime.UTC(),
			EndTime:          row.EndTime.UTC(),
			Status:           domain.EventStatus(row.Status),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calendar events: rows err: %w", err)
	}

	return events, nil
}

// EventTypeRepository reads event type metadata.
type EventTypeRepository struct {
	db *sqlx.DB
}

// NewEventTypeRepository constructs the repository.
func NewEventTypeRepository(db *sqlx.DB) *EventTypeRepository {
	return &EventTypeRepository{db: db}
}

// Get fetches an event type scoped to its tenant.
func (r *EventTypeRepository) Get(ctx context.Context, tenantID, eventTypeID uuid.UUID) (*domain.EventType, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, tenant_id, name, duration_minutes
		FROM event_types WHERE tenant_id = $1 AND id = $2`, tenantID, eventTypeID)

	var record struct {
		ID              uuid.UUID     `db:"id"`
		TenantID        uuid.UUID     `db:"tenant_id"`
		Name            string        `db:"name"`
		DurationMinutes sql.NullInt32 `db:"duration_minutes"`
	}
	if err := row.StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("event types: get: %w", err)
	}

	return &domain.EventType{
		ID:              record.ID,
		TenantID:        record.TenantID,
		Name:            record.Name,
		DurationMinutes: int(record.DurationMinutes.Int32),
	}, nil
}
