package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/engagement-compliance/internal/repository"
)

// DirectoryRepository reads stored time zones of tenants and users.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// TenantTimezone returns the tenant's stored zone, empty when unset.
func (r *DirectoryRepository) TenantTimezone(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var zone sql.NullString
	if err := r.db.GetContext(ctx, &zone, `SELECT time_zone FROM tenants WHERE id = $1`, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("directory: tenant zone: %w", err)
	}
	return zone.String, nil
}

// UserTimezone returns the user's stored zone, empty when unset.
func (r *DirectoryRepository) UserTimezone(ctx context.Context, tenantID, userID uuid.UUID) (string, error) {
	var zone sql.NullString
	if err := r.db.GetContext(ctx, &zone, `SELECT time_zone FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("directory: user zone: %w", err)
	}
	return zone.String, nil
}
