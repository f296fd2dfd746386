package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/acme/engagement-compliance/internal/domain"
)

// Cache holds recently loaded rules per tenant.
type Cache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, bool, error)
	Set(ctx context.Context, rules *domain.ExecutionRules, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

type memoryEntry struct {
	rules     *domain.ExecutionRules
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
}

// NewMemoryCache constructs an empty cache. A nil clock uses time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, entries: make(map[uuid.UUID]memoryEntry)}
}

// Get returns a copy of the cached rules if present and not expired.
func (c *MemoryCache) Get(_ context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[tenantID]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, tenantID)
		return nil, false, nil
	}
	return entry.rules.Clone(), true, nil
}

// Set stores a copy of rules until ttl elapses.
func (c *MemoryCache) Set(_ context.Context, rules *domain.ExecutionRules, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[rules.TenantID] = memoryEntry{rules: rules.Clone(), expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Invalidate drops the tenant's entry.
func (c *MemoryCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	return nil
}

// RedisCache shares cached rules between processes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a cache storing keys under prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "compliance:rules:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(tenantID uuid.UUID) string {
	return c.prefix + tenantID.String()
}

// Get loads and decodes the tenant's entry.
func (c *RedisCache) Get(ctx context.Context, tenantID uuid.UUID) (*domain.ExecutionRules, bool, error) {
	data, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rules cache: get: %w", err)
	}

	var cached cachedRules
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, fmt.Errorf("rules cache: decode: %w", err)
	}
	return cached.toDomain(), true, nil
}

// Set writes the entry with an expiry.
func (c *RedisCache) Set(ctx context.Context, rules *domain.ExecutionRules, ttl time.Duration) error {
	data, err := json.Marshal(fromDomain(rules))
	if err != nil {
		return fmt.Errorf("rules cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(rules.TenantID), data, ttl).Err(); err != nil {
		return fmt.Errorf("rules cache: set: %w", err)
	}
	return nil
}

// Invalidate deletes the entry.
func (c *RedisCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("rules cache: invalidate: %w", err)
	}
	return nil
}

type cachedBusinessHours struct {
	StartHour  int      `json:"start_hour"`
	EndHour    int      `json:"end_hour"`
	DaysOfWeek []string `json:"days_of_week"`
	Timezone   string   `json:"timezone,omitempty"`
}

type cachedRules struct {
	TenantID                         uuid.UUID            `json:"tenant_id"`
	EnableAfterHoursHandling         bool                 `json:"enable_after_hours_handling"`
	EnableTCPAHandling               bool                 `json:"enable_tcpa_handling"`
	EnableResubmissionHandling       bool                 `json:"enable_resubmission_handling"`
	AfterHoursAction                 string               `json:"after_hours_action"`
	AfterHoursBusinessHours          *cachedBusinessHours `json:"after_hours_business_hours,omitempty"`
	AfterHoursRescheduleTime         string               `json:"after_hours_reschedule_time,omitempty"`
	AfterHoursDefaultEventTypeID     *uuid.UUID           `json:"after_hours_default_event_type_id,omitempty"`
	TCPAViolationAction              string               `json:"tcpa_violation_action"`
	TCPARescheduleTime               string               `json:"tcpa_reschedule_time,omitempty"`
	TCPADefaultEventTypeID           *uuid.UUID           `json:"tcpa_default_event_type_id,omitempty"`
	ResubmissionAction               string               `json:"resubmission_action"`
	ResubmissionDetectionWindowHours int                  `json:"resubmission_detection_window_hours"`
	ResubmissionRescheduleDelayHours int                  `json:"resubmission_reschedule_delay_hours"`
	ResubmissionDefaultEventTypeID   *uuid.UUID           `json:"resubmission_default_event_type_id,omitempty"`
	CreatedAt                        time.Time            `json:"created_at"`
	UpdatedAt                        time.Time            `json:"updated_at"`
}

func fromDomain(r *domain.ExecutionRules) cachedRules {
	out := cachedRules{
		TenantID:                         r.TenantID,
		EnableAfterHoursHandling:         r.EnableAfterHoursHandling,
		EnableTCPAHandling:               r.EnableTCPAHandling,
		EnableResubmissionHandling:       r.EnableResubmissionHandling,
		AfterHoursAction:                 string(r.AfterHoursAction),
		AfterHoursRescheduleTime:         r.AfterHoursRescheduleTime,
		AfterHoursDefaultEventTypeID:     r.AfterHoursDefaultEventTypeID,
		TCPAViolationAction:              string(r.TCPAViolationAction),
		TCPARescheduleTime:               r.TCPARescheduleTime,
		TCPADefaultEventTypeID:           r.TCPADefaultEventTypeID,
		ResubmissionAction:               string(r.ResubmissionAction),
		ResubmissionDetectionWindowHours: r.ResubmissionDetectionWindowHours,
		ResubmissionRescheduleDelayHours: r.ResubmissionRescheduleDelayHours,
		ResubmissionDefaultEventTypeID:   r.ResubmissionDefaultEventTypeID,
		CreatedAt:                        r.CreatedAt,
		UpdatedAt:                        r.UpdatedAt,
	}
	if bh := r.AfterHoursBusinessHours; bh != nil {
		cbh := &cachedBusinessHours{StartHour: bh.StartHour, EndHour: bh.EndHour, Timezone: bh.Timezone}
		for _, d := range bh.DaysOfWeek {
			cbh.DaysOfWeek = append(cbh.DaysOfWeek, domain.WeekdayName(d))
		}
		out.AfterHoursBusinessHours = cbh
	}
	return out
}

func (c cachedRules) toDomain() *domain.ExecutionRules {
	out := &domain.ExecutionRules{
		TenantID:                         c.TenantID,
		EnableAfterHoursHandling:         c.EnableAfterHoursHandling,
		EnableTCPAHandling:               c.EnableTCPAHandling,
		EnableResubmissionHandling:       c.EnableResubmissionHandling,
		AfterHoursAction:                 domain.AfterHoursAction(c.AfterHoursAction),
		AfterHoursRescheduleTime:         c.AfterHoursRescheduleTime,
		AfterHoursDefaultEventTypeID:     c.AfterHoursDefaultEventTypeID,
		TCPAViolationAction:              domain.TCPAAction(c.TCPAViolationAction),
		TCPARescheduleTime:               c.TCPARescheduleTime,
		TCPADefaultEventTypeID:           c.TCPADefaultEventTypeID,
		ResubmissionAction:               domain.ResubmissionAction(c.ResubmissionAction),
		ResubmissionDetectionWindowHours: c.ResubmissionDetectionWindowHours,
		ResubmissionRescheduleDelayHours: c.ResubmissionRescheduleDelayHours,
		ResubmissionDefaultEventTypeID:   c.ResubmissionDefaultEventTypeID,
		CreatedAt:                        c.CreatedAt,
		UpdatedAt:                        c.UpdatedAt,
	}
	if cbh := c.AfterHoursBusinessHours; cbh != nil {
		bh := &domain.BusinessHours{StartHour: cbh.StartHour, EndHour: cbh.EndHour, Timezone: cbh.Timezone}
		for _, name := range cbh.DaysOfWeek {
			if day, err := domain.ParseWeekday(name); err == nil {
				bh.DaysOfWeek = append(bh.DaysOfWeek, day)
			}
		}
		out.AfterHoursBusinessHours = bh
	}
	return out
}
