package task

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by queues
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Queue accepts jobs for asynchronous processing.
type Queue interface {
	// Enqueue adds one job.
	Enqueue(ctx context.Context, job Job) error

	// EnqueueBulk adds all jobs, or none of them.
	EnqueueBulk(ctx context.Context, jobs []Job) error
}

// Delivery is a job handed to a consumer. The queue keeps ownership of the
// job until the delivery is acknowledged, retried or rejected.
type Delivery struct {
	Job Job

	// Receipt is an opaque backend handle identifying this delivery.
	Receipt string
}

// Consumer is the receiving side of a queue.
type Consumer interface {
	// Dequeue blocks until a job is available, ctx is done or the queue closes.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack marks the delivery as done.
	Ack(ctx context.Context, d *Delivery) error

	// Nack schedules the delivery for another attempt after a backoff, or moves
	// it to the dead-letter list once its attempts are exhausted.
	Nack(ctx context.Context, d *Delivery, cause error) error

	// Reject moves the delivery straight to the dead-letter list.
	Reject(ctx context.Context, d *Delivery, cause error) error
}

// RetryPolicy bounds redelivery of failed jobs.
type RetryPolicy struct {
	// MaxAttempts is the number of deliveries a job gets before it is dead-lettered.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns 5 attempts with exponential backoff from 1s to 1m.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
	}
}

// Exhausted reports whether a job that has failed attempts times may not be retried.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Backoff returns the delay before the given retry (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
