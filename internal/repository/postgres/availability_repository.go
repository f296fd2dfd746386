package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/acme/engagement-compliance/internal/domain"
)

const availabilityColumns = `id, tenant_id, event_type_id, assigned_to_user_id, weekly_schedule,
	start_date, end_date, blocked_dates, max_events_per_slot, active, created_at, updated_at`

// AvailabilityRepository reads weekly availability rows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListActive returns active rows for the event type, optionally narrowed to an
// assignee. Unassigned rows always match.
func (r *AvailabilityRepository) ListActive(ctx context.Context, tenantID, eventTypeID uuid.UUID, assignee *uuid.UUID) ([]domain.Availability, error) {
	var rows *sqlx.Rows
	var err error
	if assignee != nil {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE tenant_id = $1 AND event_type_id = $2 AND active
		  AND (assigned_to_user_id = $3 OR assigned_to_user_id IS NULL)
		ORDER BY created_at ASC, id ASC`, tenantID, eventTypeID, *assignee)
	} else {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE tenant_id = $1 AND event_type_id = $2 AND active
		ORDER BY created_at ASC, id ASC`, tenantID, eventTypeID)
	}
	if err != nil {
		return nil, fmt.Errorf("availability: list active: %w", err)
	}
	defer rows.Close()

	var results []domain.Availability
	for rows.Next() {
		var record availabilityRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("availability: scan: %w", err)
		}
		availability, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, availability)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows err: %w", err)
	}

	return results, nil
}

type availabilityRecord struct {
	ID               uuid.UUID      `db:"id"`
	TenantID         uuid.UUID      `db:"tenant_id"`
	EventTypeID      uuid.UUID      `db:"event_type_id"`
	AssignedToUserID uuid.NullUUID  `db:"assigned_to_user_id"`
	WeeklySchedule   types.JSONText `db:"weekly_schedule"`
	StartDate        sql.NullTime   `db:"start_date"`
	EndDate          sql.NullTime   `db:"end_date"`
	BlockedDates     pq.StringArray `db:"blocked_dates"`
	MaxEventsPerSlot int            `db:"max_events_per_slot"`
	Active           bool           `db:"active"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r availabilityRecord) toDomain() (domain.Availability, error) {
	a := domain.Availability{
		ID:               r.ID,
		TenantID:         r.TenantID,
		EventTypeID:      r.EventTypeID,
		AssignedToUserID: uuidPtr(r.AssignedToUserID),
		StartDate:        timePtr(r.StartDate),
		EndDate:          timePtr(r.EndDate),
		BlockedDates:     []string(r.BlockedDates),
		MaxEventsPerSlot: r.MaxEventsPerSlot,
		Active:           r.Active,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}

	if len(r.WeeklySchedule) > 0 {
		if err := json.Unmarshal(r.WeeklySchedule, &a.WeeklySchedule); err != nil {
			return domain.Availability{}, fmt.Errorf("availability: %s: decode weekly schedule: %w", r.ID, err)
		}
	}

	return a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
