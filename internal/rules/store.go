// Package rules loads and updates tenant execution rules behind a short-lived cache.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/repository"
)

// DefaultTTL bounds how stale a cached rules entry may be.
const DefaultTTL = 5 * time.Minute

// Store serves execution rules, provisioning defaults on first read.
type Store struct {
	repo   repository.ExecutionRulesRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewStore constructs a store. A nil cache disables caching.
func NewStore(repo repository.ExecutionRulesRepository, cache Cache, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the tenant's rules. A tenant without a stored row gets the
// defaults, which are persisted before returning.
func (s *Store) Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.Warn("rules store: cache read failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	rules, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := domain.DefaultExecutionRules(tenantID, s.now().UTC())
		if err := s.repo.CreateIfAbsent(ctx, defaults); err != nil {
			return nil, fmt.Errorf("rules store: provision defaults: %w", err)
		}
		s.logger.Info("rules store: provisioned default rules", zap.String("tenant_id", tenantID.String()))
		rules, err = s.repo.Get(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("rules store: load: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rules, s.ttl); err != nil {
			s.logger.Warn("rules store: cache write failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}
	return rules, nil
}

// Update merges patch into the tenant's rules, creating the row when absent.
// The cache entry is invalidated before Update returns.
func (s *Store) Update(ctx context.Context, tenantID uuid.UUID, patch Patch) (*domain.ExecutionRules, error) {
	now := s.now().UTC()
	seed := domain.DefaultExecutionRules(tenantID, now)

	updated, err := s.repo.Update(ctx, seed, func(current *domain.ExecutionRules) error {
		patch.Apply(current)
		if err := Validate(current); err != nil {
			return err
		}
		current.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rules store: update: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("rules store: invalidate: %w", err)
		}
	}

	s.logger.Info("rules store: rules updated", zap.String("tenant_id", tenantID.String()))
	return updated, nil
}
