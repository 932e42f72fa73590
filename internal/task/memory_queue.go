package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DeadLetter is a job that will not be delivered again.
type DeadLetter struct {
	Job      Job
	Reason   string
	FailedAt time.Time
}

// MemoryQueue is a buffered in-process queue implementing Queue and Consumer.
// Jobs do not survive a restart.
type MemoryQueue struct {
	jobs   chan Job
	policy RetryPolicy
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	deadMu sync.Mutex
	dead   []DeadLetter

	// retries tracks pending backoff timers so Close can wait for them.
	retries sync.WaitGroup
}

// Compile-time checks
var (
	_ Queue    = (*MemoryQueue)(nil)
	_ Consumer = (*MemoryQueue)(nil)
)

// NewMemoryQueue creates a queue holding at most size jobs.
func NewMemoryQueue(size int, policy RetryPolicy, logger *slog.Logger) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryQueue{
		jobs:   make(chan Job, size),
		policy: policy,
		logger: logger.With(slog.String("component", "memory_queue")),
	}
}

// Enqueue adds a job to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	return q.EnqueueBulk(ctx, []Job{job})
}

// EnqueueBulk implements Queue. If there is not room for every job, none is added.
func (q *MemoryQueue) EnqueueBulk(ctx context.Context, jobs []Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Holding the write lock keeps concurrent producers from racing for the
	// free slots checked below.
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if free := cap(q.jobs) - len(q.jobs); free < len(jobs) {
		return fmt.Errorf("%w: %d free of capacity %d, need %d", ErrQueueFull, free, cap(q.jobs), len(jobs))
	}

	for _, job := range jobs {
		q.jobs <- job
		q.logger.Debug("job enqueued",
			"job_id", job.ID,
			"job_kind", job.Kind,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
	}
	return nil
}

// Dequeue implements Consumer.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return &Delivery{Job: job, Receipt: job.ID.String()}, nil
	}
}

// Ack implements Consumer.
func (q *MemoryQueue) Ack(_ context.Context, _ *Delivery) error {
	return nil
}

// Nack implements Consumer. The job is re-enqueued after the policy backoff.
func (q *MemoryQueue) Nack(_ context.Context, d *Delivery, cause error) error {
	job := d.Job
	job.Attempts++

	if q.policy.Exhausted(job.Attempts) {
		q.deadLetter(job, fmt.Sprintf("retries exhausted: %v", cause))
		return nil
	}

	delay := q.policy.Backoff(job.Attempts)
	q.logger.Info("scheduling job retry",
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempt", job.Attempts,
		"delay", delay)

	q.retries.Add(1)
	time.AfterFunc(delay, func() {
		defer q.retries.Done()
		if err := q.Enqueue(context.Background(), job); err != nil {
			q.deadLetter(job, fmt.Sprintf("requeue failed: %v", err))
		}
	})
	return nil
}

// Reject implements Consumer.
func (q *MemoryQueue) Reject(_ context.Context, d *Delivery, cause error) error {
	q.deadLetter(d.Job, cause.Error())
	return nil
}

func (q *MemoryQueue) deadLetter(job Job, reason string) {
	q.deadMu.Lock()
	q.dead = append(q.dead, DeadLetter{Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	q.deadMu.Unlock()

	q.logger.Warn("job dead-lettered",
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempts", job.Attempts,
		"reason", reason)
}

// DeadLetters returns a copy of the dead-letter list.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len returns the number of jobs waiting for delivery.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs. Jobs already buffered can still be dequeued;
// Dequeue returns ErrQueueClosed once they are drained.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("job queue closed")
	}
	q.mu.Unlock()
}

// WaitRetries blocks until every scheduled retry has fired.
func (q *MemoryQueue) WaitRetries() {
	q.retries.Wait()
}
