package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/repository"
)

const rulesColumns = `tenant_id, enable_after_hours_handling, enable_tcpa_handling, enable_resubmission_handling,
	after_hours_action, business_start_hour, business_end_hour, business_days, business_time_zone,
	after_hours_reschedule_time, after_hours_default_event_type_id,
	tcpa_violation_action, tcpa_reschedule_time, tcpa_default_event_type_id,
	resubmission_action, resubmission_detection_window_hours, resubmission_reschedule_delay_hours,
	resubmission_default_event_type_id, created_at, updated_at`

const rulesValues = `:tenant_id, :enable_after_hours_handling, :enable_tcpa_handling, :enable_resubmission_handling,
	:after_hours_action, :business_start_hour, :business_end_hour, :business_days, :business_time_zone,
	:after_hours_reschedule_time, :after_hours_default_event_type_id,
	:tcpa_violation_action, :tcpa_reschedule_time, :tcpa_default_event_type_id,
	:resubmission_action, :resubmission_detection_window_hours, :resubmission_reschedule_delay_hours,
	:resubmission_default_event_type_id, :created_at, :updated_at`

// ExecutionRulesRepository implements repository.ExecutionRulesRepository using PostgreSQL.
type ExecutionRulesRepository struct {
	db *sqlx.DB
}

// NewExecutionRulesRepository constructs the repository.
func NewExecutionRulesRepository(db *sqlx.DB) *ExecutionRulesRepository {
	return &ExecutionRulesRepository{db: db}
}

// Get loads the tenant's rules row.
func (r *ExecutionRulesRepository) Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+rulesColumns+` FROM execution_rules WHERE tenant_id = $1`, tenantID)

	var record rulesRecord
	if err := row.StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("execution rules: get: %w", err)
	}
	return record.toDomain()
}

// CreateIfAbsent inserts the row, leaving an existing row untouched.
func (r *ExecutionRulesRepository) CreateIfAbsent(ctx context.Context, rules *domain.ExecutionRules) error {
	q := `INSERT INTO execution_rules (` + rulesColumns + `) VALUES (` + rulesValues + `)
	ON CONFLICT (tenant_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, q, rulesParams(rules)); err != nil {
		return fmt.Errorf("execution rules: create: %w", err)
	}
	return nil
}

// Update locks the tenant's row, creating it from seed when absent, applies
// mutate and writes the result back in one transaction.
func (r *ExecutionRulesRepository) Update(ctx context.Context, seed *domain.ExecutionRules, mutate func(*domain.ExecutionRules) error) (*domain.ExecutionRules, error) {
	var updated *domain.ExecutionRules
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO execution_rules (`+rulesColumns+`) VALUES (`+rulesValues+`)
		ON CONFLICT (tenant_id) DO NOTHING`, rulesParams(seed)); err != nil {
			return fmt.Errorf("execution rules: seed: %w", err)
		}

		var record rulesRecord
		if err := tx.QueryRowxContext(ctx, `SELECT `+rulesColumns+` FROM execution_rules WHERE tenant_id = $1 FOR UPDATE`, seed.TenantID).StructScan(&record); err != nil {
			return fmt.Errorf("execution rules: lock: %w", err)
		}
		current, err := record.toDomain()
		if err != nil {
			return err
		}

		if err := mutate(current); err != nil {
			return err
		}

		if _, err := tx.NamedExecContext(ctx, `UPDATE execution_rules SET
			enable_after_hours_handling = :enable_after_hours_handling,
			enable_tcpa_handling = :enable_tcpa_handling,
			enable_resubmission_handling = :enable_resubmission_handling,
			after_hours_action = :after_hours_action,
			business_start_hour = :business_start_hour,
			business_end_hour = :business_end_hour,
			business_days = :business_days,
			business_time_zone = :business_time_zone,
			after_hours_reschedule_time = :after_hours_reschedule_time,
			after_hours_default_event_type_id = :after_hours_default_event_type_id,
			tcpa_violation_action = :tcpa_violation_action,
			tcpa_reschedule_time = :tcpa_reschedule_time,
			tcpa_default_event_type_id = :tcpa_default_event_type_id,
			resubmission_action = :resubmission_action,
			resubmission_detection_window_hours = :resubmission_detection_window_hours,
			resubmission_reschedule_delay_hours = :resubmission_reschedule_delay_hours,
			resubmission_default_event_type_id = :resubmission_default_event_type_id,
			updated_at = :updated_at
		WHERE tenant_id = :tenant_id`, rulesParams(current)); err != nil {
			return fmt.Errorf("execution rules: update: %w", err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func rulesParams(rules *domain.ExecutionRules) map[string]any {
	var (
		start, end sql.NullInt32
		zone       sql.NullString
		days       = pq.StringArray{}
	)
	if bh := rules.AfterHoursBusinessHours; bh != nil {
		start = sql.NullInt32{Int32: int32(bh.StartHour), Valid: true}
		end = sql.NullInt32{Int32: int32(bh.EndHour), Valid: true}
		zone = nullString(bh.Timezone)
		for _, d := range bh.DaysOfWeek {
			days = append(days, domain.WeekdayName(d))
		}
	}

	return map[string]any{
		"tenant_id":                           rules.TenantID,
		"enable_after_hours_handling":         rules.EnableAfterHoursHandling,
		"enable_tcpa_handling":                rules.EnableTCPAHandling,
		"enable_resubmission_handling":        rules.EnableResubmissionHandling,
		"after_hours_action":                  string(rules.AfterHoursAction),
		"business_start_hour":                 start,
		"business_end_hour":                   end,
		"business_days":                       days,
		"business_time_zone":                  zone,
		"after_hours_reschedule_time":         nullString(rules.AfterHoursRescheduleTime),
		"after_hours_default_event_type_id":   nullUUID(rules.AfterHoursDefaultEventTypeID),
		"tcpa_violation_action":               string(rules.TCPAViolationAction),
		"tcpa_reschedule_time":                nullString(rules.TCPARescheduleTime),
		"tcpa_default_event_type_id":          nullUUID(rules.TCPADefaultEventTypeID),
		"resubmission_action":                 string(rules.ResubmissionAction),
		"resubmission_detection_window_hours": rules.ResubmissionDetectionWindowHours,
		"resubmission_reschedule_delay_hours": rules.ResubmissionRescheduleDelayHours,
		"resubmission_default_event_type_id":  nullUUID(rules.ResubmissionDefaultEventTypeID),
		"created_at":                          rules.CreatedAt,
		"updated_at":                          rules.UpdatedAt,
	}
}

type rulesRecord struct {
	TenantID                         uuid.UUID      `db:"tenant_id"`
	EnableAfterHoursHandling         bool           `db:"enable_after_hours_handling"`
	EnableTCPAHandling               bool           `db:"enable_tcpa_handling"`
	EnableResubmissionHandling       bool           `db:"enable_resubmission_handling"`
	AfterHoursAction                 string         `db:"after_hours_action"`
	BusinessStartHour                sql.NullInt32  `db:"business_start_hour"`
	BusinessEndHour                  sql.NullInt32  `db:"business_end_hour"`
	BusinessDays                     pq.StringArray `db:"business_days"`
	BusinessTimeZone                 sql.NullString `db:"business_time_zone"`
	AfterHoursRescheduleTime         sql.NullString `db:"after_hours_reschedule_time"`
	AfterHoursDefaultEventTypeID     uuid.NullUUID  `db:"after_hours_default_event_type_id"`
	TCPAViolationAction              string         `db:"tcpa_violation_action"`
	TCPARescheduleTime               sql.NullString `db:"tcpa_reschedule_time"`
	TCPADefaultEventTypeID           uuid.NullUUID  `db:"tcpa_default_event_type_id"`
	ResubmissionAction               string         `db:"resubmission_action"`
	ResubmissionDetectionWindowHours int            `db:"resubmission_detection_window_hours"`
	ResubmissionRescheduleDelayHours int            `db:"resubmission_reschedule_delay_hours"`
	ResubmissionDefaultEventTypeID   uuid.NullUUID  `db:"resubmission_default_event_type_id"`
	CreatedAt                        time.Time      `db:"created_at"`
	UpdatedAt                        time.Time      `db:"updated_at"`
}

func (r rulesRecord) toDomain() (*domain.ExecutionRules, error) {
	rules := &domain.ExecutionRules{
		TenantID:                         r.TenantID,
		EnableAfterHoursHandling:         r.EnableAfterHoursHandling,
		EnableTCPAHandling:               r.EnableTCPAHandling,
		EnableResubmissionHandling:       r.EnableResubmissionHandling,
		AfterHoursAction:                 domain.AfterHoursAction(r.AfterHoursAction),
		AfterHoursRescheduleTime:         r.AfterHoursRescheduleTime.String,
		AfterHoursDefaultEventTypeID:     uuidPtr(r.AfterHoursDefaultEventTypeID),
		TCPAViolationAction:              domain.TCPAAction(r.TCPAViolationAction),
		TCPARescheduleTime:               r.TCPARescheduleTime.String,
		TCPADefaultEventTypeID:           uuidPtr(r.TCPADefaultEventTypeID),
		ResubmissionAction:               domain.ResubmissionAction(r.ResubmissionAction),
		ResubmissionDetectionWindowHours: r.ResubmissionDetectionWindowHours,
		ResubmissionRescheduleDelayHours: r.ResubmissionRescheduleDelayHours,
		ResubmissionDefaultEventTypeID:   uuidPtr(r.ResubmissionDefaultEventTypeID),
		CreatedAt:                        r.CreatedAt.UTC(),
		UpdatedAt:                        r.UpdatedAt.UTC(),
	}

	if r.BusinessStartHour.Valid && r.BusinessEndHour.Valid {
		bh := &domain.BusinessHours{
			StartHour: int(r.BusinessStartHour.Int32),
			EndHour:   int(r.BusinessEndHour.Int32),
			Timezone:  r.BusinessTimeZone.String,
		}
		for _, name := range r.BusinessDays {
			day, err := domain.ParseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("execution rules: tenant %s: %w", r.TenantID, err)
			}
			bh.DaysOfWeek = append(bh.DaysOfWeek, day)
		}
		rules.AfterHoursBusinessHours = bh
	}

	return rules, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}
