package rules

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/engagement-compliance/internal/domain"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ""), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestRedisCache(t)

	rules := domain.DefaultExecutionRules(uuid.New(), time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC))
	rules.AfterHoursBusinessHours.Timezone = "America/Chicago"
	id := uuid.New()
	rules.TCPADefaultEventTypeID = &id

	require.NoError(t, cache.Set(ctx, rules, time.Minute))
	assert.True(t, mr.Exists("compliance:rules:"+rules.TenantID.String()))

	got, ok, err := cache.Get(ctx, rules.TenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rules.AfterHoursBusinessHours.DaysOfWeek, got.AfterHoursBusinessHours.DaysOfWeek)
	assert.Equal(t, "America/Chicago", got.AfterHoursBusinessHours.Timezone)
	assert.Equal(t, &id, got.TCPADefaultEventTypeID)
	assert.Equal(t, rules.TCPAViolationAction, got.TCPAViolationAction)
	assert.True(t, rules.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisCacheExpiryAndInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestRedisCache(t)
	rules := domain.DefaultExecutionRules(uuid.New(), time.Now())

	require.NoError(t, cache.Set(ctx, rules, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err := cache.Get(ctx, rules.TenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, rules, time.Minute))
	require.NoError(t, cache.Invalidate(ctx, rules.TenantID))
	_, ok, err = cache.Get(ctx, rules.TenantID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreWithRedisCacheInvalidatesOnUpdate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestRedisCache(t)
	repo := newFakeRepo()
	store := NewStore(repo, cache, time.Minute, nil)
	tenantID := uuid.New()

	_, err := store.Get(ctx, tenantID)
	require.NoError(t, err)

	enabled := false
	_, err = store.Update(ctx, tenantID, Patch{EnableAfterHoursHandling: &enabled})
	require.NoError(t, err)

	got, err := store.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, got.EnableAfterHoursHandling)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clock.Now)
	rules := domain.DefaultExecutionRules(uuid.New(), clock.Now())

	require.NoError(t, cache.Set(ctx, rules, time.Minute))
	_, ok, _ := cache.Get(ctx, rules.TenantID)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = cache.Get(ctx, rules.TenantID)
	assert.False(t, ok)
}
