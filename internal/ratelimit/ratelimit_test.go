package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FixedWindow(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 3, 1, 10, 15, 20, 0, time.UTC)
	m := NewMemory(3)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := m.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	other, err := m.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "clients are counted separately")

	clock = clock.Add(time.Minute)
	res, err = m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a new window resets the count")
	assert.Equal(t, 2, res.Remaining)
}

func TestNewResult(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 15, 59, 500_000_000, time.UTC)
	res := NewResult(10, 11, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
	assert.Equal(t, 10, res.Limit)
}
