package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool_Defaults(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1, fastPolicy(1), setupTestLogger())
	handler := JobHandlerFunc(func(context.Context, Job) error { return nil })

	pool := NewWorkerPool(q, handler, WorkerPoolConfig{WorkerCount: 0}, setupTestLogger())
	assert.Equal(t, 1, pool.workerCount)
	assert.Equal(t, time.Second, pool.pollBackoff)

	pool = NewWorkerPool(q, handler, WorkerPoolConfig{WorkerCount: 4}, setupTestLogger())
	assert.Equal(t, 4, pool.workerCount)
}

func TestWorkerPool_ProcessesAndSettlesJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(10, fastPolicy(2), setupTestLogger())

	okJob := NewOverdueNotificationJob(uuid.New())
	badJob := NewOverdueNotificationJob(uuid.New())
	flakyJob := NewOverdueNotificationJob(uuid.New())

	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	var done sync.WaitGroup
	// okJob once, badJob once, flakyJob twice
	done.Add(4)

	handler := JobHandlerFunc(func(_ context.Context, job Job) error {
		defer done.Done()
		mu.Lock()
		seen[job.ID]++
		n := seen[job.ID]
		mu.Unlock()

		switch job.ID {
		case badJob.ID:
			return Permanent(errors.New("invalid"))
		case flakyJob.ID:
			if n == 1 {
				return errors.New("transient")
			}
		}
		return nil
	})

	var handled atomic.Int32
	pool := NewWorkerPool(q, handler, WorkerPoolConfig{WorkerCount: 3}, setupTestLogger())
	pool.SetErrorHandler(func(Job, error) { handled.Add(1) })
	pool.Start()

	require.NoError(t, q.EnqueueBulk(ctx, []Job{okJob, badJob, flakyJob}))

	waitCh := make(chan struct{})
	go func() { done.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[okJob.ID])
	assert.Equal(t, 1, seen[badJob.ID], "permanent failures are never redelivered")
	assert.Equal(t, 2, seen[flakyJob.ID])
	assert.Equal(t, int32(2), handled.Load())

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, badJob.ID, dead[0].Job.ID)
}

func TestWorkerPool_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(1, fastPolicy(3), setupTestLogger())

	processed := make(chan struct{})
	handler := JobHandlerFunc(func(context.Context, Job) error {
		defer close(processed)
		panic("boom")
	})

	pool := NewWorkerPool(q, handler, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(ctx, NewOverdueNotificationJob(uuid.New())))
	<-processed

	assert.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_StopWaitsForInFlightJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(1, fastPolicy(3), setupTestLogger())

	started := make(chan struct{})
	var finished atomic.Bool
	handler := JobHandlerFunc(func(ctx context.Context, _ Job) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if ctx.Err() == nil {
			finished.Store(true)
		}
		return nil
	})

	pool := NewWorkerPool(q, handler, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	require.NoError(t, q.Enqueue(ctx, NewOverdueNotificationJob(uuid.New())))

	<-started
	pool.Stop()
	assert.True(t, finished.Load(), "in-flight job must complete with a live context")
}

func TestWorkerPool_StopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1, fastPolicy(3), setupTestLogger())
	pool := NewWorkerPool(q, JobHandlerFunc(func(context.Context, Job) error { return nil }),
		WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())
	pool.Start()

	q.Close()

	stopped := make(chan struct{})
	go func() { pool.wg.Wait(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after queue close")
	}
	pool.Stop()
}
