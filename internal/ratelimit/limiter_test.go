package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWithoutRedisUsesFallback(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := l.Allow(ctx, "client-1", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := l.Allow(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed)
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := newCircuitBreaker()
	require.False(t, cb.IsOpen())
	for i := 0; i < cb.failureThreshold; i++ {
		cb.RecordFailure()
	}
	require.True(t, cb.IsOpen())

	for i := 0; i < cb.successThreshold; i++ {
		cb.RecordSuccess()
	}
	require.False(t, cb.IsOpen())
}

func TestBucketStoreAllowNEnforcesLimit(t *testing.T) {
	store := NewBucketStore()
	ctx := context.Background()

	result, err := store.AllowN(ctx, "k", 2, 5, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, 3, result.Remaining)

	result, err = store.AllowN(ctx, "k", 4, 5, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed)
}
