//go:build integration

package redis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/go-redis/redis/v8"
	"github.com/phrazzld/taskd/internal/config"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/redis"
	"github.com/phrazzld/taskd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rdb, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: addr}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCache_Integration(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := redis.NewCache(rdb)

	prefix := "it:" + uuid.NewString() + ":"
	require.NoError(t, c.Set(ctx, prefix+"a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, prefix+"b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "other:"+prefix, []byte("3"), time.Minute))
	t.Cleanup(func() { _ = rdb.Del(ctx, "other:"+prefix).Err() })

	v, ok, err := c.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, c.DeleteByPrefix(ctx, prefix))

	_, ok, err = c.Get(ctx, prefix+"b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, "other:"+prefix)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueue_Integration(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()

	name := "it-queue-" + uuid.NewString()
	keys := redis.KeysFor(name)
	t.Cleanup(func() { _ = rdb.Del(ctx, keys.Ready, keys.Processing, keys.Retry, keys.Dead).Err() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := redis.NewQueue(rdb, redis.QueueOptions{
		Name:            name,
		Policy:          task.RetryPolicy{MaxAttempts: 2, BaseBackoff: 10 * time.Millisecond, MaxBackoff: 10 * time.Millisecond},
		BlockTimeout:    100 * time.Millisecond,
		PromoteInterval: 20 * time.Millisecond,
	}, logger)
	defer q.Close()

	job := task.NewStatusUpdateJob(uuid.New(), domain.TaskStatusCompleted, time.Now())
	require.NoError(t, q.Enqueue(ctx, job))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, d.Job.ID)

	// First failure goes to the retry set and comes back after the backoff.
	require.NoError(t, q.Nack(ctx, d, errors.New("transient")))
	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	d, err = q.Dequeue(dctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Job.Attempts)

	// Second failure exhausts the policy.
	require.NoError(t, q.Nack(ctx, d, errors.New("transient again")))
	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].Job.ID)

	processing, err := rdb.LLen(ctx, keys.Processing).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)

	q.Close()
	assert.ErrorIs(t, q.Enqueue(ctx, job), task.ErrQueueClosed)
}

func TestRateLimiter_Integration(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	l := redis.NewRateLimiter(rdb, 2)
	client := "it-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, client)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, client)
	require.NoError(t, err)
	if res.Allowed {
		// The window rolled over between calls.
		t.Skip("minute boundary crossed")
	}
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}
