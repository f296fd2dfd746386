package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var availabilityColumnNames = []string{
	"id", "tenant_id", "event_type_id", "assigned_to_user_id", "weekly_schedule",
	"start_date", "end_date", "blocked_dates", "max_events_per_slot", "active", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func TestAvailabilityListActiveNarrowsToAssigneeOrUnassigned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAvailabilityRepository(db)

	tenantID, eventTypeID, alice := uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2024, time.July, 1, 9, 0, 0, 0, time.UTC)
	globalID, aliceID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(availabilityColumnNames).
		AddRow(globalID.String(), tenantID.String(), eventTypeID.String(), nil,
			`{"monday": {"enabled": true, "startTime": "09:00", "endTime": "10:00"}}`,
			nil, nil, "{}", 1, true, created, created).
		AddRow(aliceID.String(), tenantID.String(), eventTypeID.String(), alice.String(),
			`{}`, nil, nil, "{2024-07-04}", 2, true, created, created)

	mock.ExpectQuery(regexp.QuoteMeta("AND (assigned_to_user_id = $3 OR assigned_to_user_id IS NULL)")).
		WithArgs(tenantID, eventTypeID, alice).
		WillReturnRows(rows)

	got, err := repo.ListActive(context.Background(), tenantID, eventTypeID, &alice)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, globalID, got[0].ID)
	assert.Nil(t, got[0].AssignedToUserID)
	assert.Contains(t, got[0].WeeklySchedule, time.Monday)

	assert.Equal(t, aliceID, got[1].ID)
	require.NotNil(t, got[1].AssignedToUserID)
	assert.Equal(t, alice, *got[1].AssignedToUserID)
	assert.Equal(t, []string{"2024-07-04"}, got[1].BlockedDates)
	assert.Equal(t, 2, got[1].MaxEventsPerSlot)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityListActiveWithoutAssignee(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAvailabilityRepository(db)
	tenantID, eventTypeID := uuid.New(), uuid.New()

	mock.ExpectQuery(`WHERE tenant_id = \$1 AND event_type_id = \$2 AND active\s+ORDER BY`).
		WithArgs(tenantID, eventTypeID).
		WillReturnRows(sqlmock.NewRows(availabilityColumnNames))

	got, err := repo.ListActive(context.Background(), tenantID, eventTypeID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
