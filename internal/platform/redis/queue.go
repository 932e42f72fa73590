package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/taskd/internal/task"
)

// Default queue timings
const (
	DefaultBlockTimeout    = time.Second
	DefaultPromoteInterval = 200 * time.Millisecond
	promoteBatch           = 128
)

// promoteScript moves up to ARGV[2] retry entries due at or before ARGV[1]
// from the retry set onto the ready list in one atomic step.
var promoteScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, item in ipairs(items) do
	redis.call('ZREM', KEYS[1], item)
	redis.call('LPUSH', KEYS[2], item)
end
return #items
`)

// QueueKeys names the Redis structures backing one queue.
type QueueKeys struct {
	Ready      string // list, LPUSH in, BRPOPLPUSH out
	Processing string // list of deliveries not yet acknowledged
	Retry      string // sorted set scored by due time in unix milliseconds
	Dead       string // list of dead-lettered entries
}

// KeysFor returns the keys of the queue called name.
func KeysFor(name string) QueueKeys {
	return QueueKeys{
		Ready:      name + ":ready",
		Processing: name + ":processing",
		Retry:      name + ":retry",
		Dead:       name + ":dead",
	}
}

// QueueOptions tunes a Queue.
type QueueOptions struct {
	Name   string
	Policy task.RetryPolicy

	// BlockTimeout bounds each BRPOPLPUSH so Dequeue can observe ctx and Close.
	BlockTimeout time.Duration

	// PromoteInterval is how often due retries are moved back to the ready list.
	PromoteInterval time.Duration
}

// DeadLetter is a dead-lettered job as stored in the dead list.
type DeadLetter struct {
	Job      task.Job  `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// Queue is a reliable job queue on Redis lists. A delivery stays on the
// processing list until it is acknowledged, retried or rejected, so jobs of
// a crashed worker can be recovered with RequeueInFlight.
type Queue struct {
	rdb    redis.UniversalClient
	keys   QueueKeys
	opts   QueueOptions
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	closed  bool
	stop    chan struct{}
	stopped sync.WaitGroup
}

var (
	_ task.Queue    = (*Queue)(nil)
	_ task.Consumer = (*Queue)(nil)
)

// NewQueue creates a queue on rdb and starts its retry promoter.
// Call Close to stop it.
func NewQueue(rdb redis.UniversalClient, opts QueueOptions, logger *slog.Logger) *Queue {
	if rdb == nil {
		// ALLOW-PANIC
		panic("redis client cannot be nil")
	}
	if opts.Name == "" {
		opts.Name = "task-queue"
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = task.DefaultRetryPolicy()
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = DefaultBlockTimeout
	}
	if opts.PromoteInterval <= 0 {
		opts.PromoteInterval = DefaultPromoteInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		rdb:    rdb,
		keys:   KeysFor(opts.Name),
		opts:   opts,
		logger: logger.With(slog.String("component", "redis_queue"), slog.String("queue", opts.Name)),
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	q.stopped.Add(1)
	go q.promoteLoop()

	return q
}

// Enqueue implements task.Queue.
func (q *Queue) Enqueue(ctx context.Context, job task.Job) error {
	return q.EnqueueBulk(ctx, []task.Job{job})
}

// EnqueueBulk implements task.Queue with a single LPUSH, which Redis applies
// atomically.
func (q *Queue) EnqueueBulk(ctx context.Context, jobs []task.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if q.isClosed() {
		return task.ErrQueueClosed
	}

	values := make([]interface{}, len(jobs))
	for i, job := range jobs {
		b, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
		}
		values[i] = b
	}

	if err := q.rdb.LPush(ctx, q.keys.Ready, values...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d jobs: %w", len(jobs), err)
	}

	q.logger.Debug("jobs enqueued", "count", len(jobs))
	return nil
}

// Dequeue implements task.Consumer. Entries that cannot be decoded are moved
// to the dead list and skipped.
func (q *Queue) Dequeue(ctx context.Context) (*task.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.isClosed() {
			return nil, task.ErrQueueClosed
		}

		raw, err := q.rdb.BRPopLPush(ctx, q.keys.Ready, q.keys.Processing, q.opts.BlockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to dequeue: %w", err)
		}

		var job task.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.logger.Error("dropping undecodable queue entry", "error", err)
			if err := q.moveToDead(ctx, raw, task.Job{}, fmt.Sprintf("undecodable entry: %v", err)); err != nil {
				return nil, err
			}
			continue
		}

		return &task.Delivery{Job: job, Receipt: raw}, nil
	}
}

// Ack implements task.Consumer.
func (q *Queue) Ack(ctx context.Context, d *task.Delivery) error {
	if err := q.rdb.LRem(ctx, q.keys.Processing, 1, d.Receipt).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", d.Job.ID, err)
	}
	return nil
}

// Nack implements task.Consumer. The job is parked on the retry set until
// its backoff elapses, or dead-lettered once its attempts are exhausted.
func (q *Queue) Nack(ctx context.Context, d *task.Delivery, cause error) error {
	job := d.Job
	job.Attempts++

	if q.opts.Policy.Exhausted(job.Attempts) {
		return q.moveToDead(ctx, d.Receipt, job, fmt.Sprintf("retries exhausted: %v", cause))
	}

	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	delay := q.opts.Policy.Backoff(job.Attempts)
	due := q.now().Add(delay)

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.Processing, 1, d.Receipt)
		pipe.ZAdd(ctx, q.keys.Retry, &redis.Z{Score: float64(due.UnixMilli()), Member: b})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retry of job %s: %w", job.ID, err)
	}

	q.logger.Info("scheduling job retry",
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempt", job.Attempts,
		"delay", delay)
	return nil
}

// Reject implements task.Consumer.
func (q *Queue) Reject(ctx context.Context, d *task.Delivery, cause error) error {
	reason := "rejected"
	if cause != nil {
		reason = cause.Error()
	}
	return q.moveToDead(ctx, d.Receipt, d.Job, reason)
}

func (q *Queue) moveToDead(ctx context.Context, receipt string, job task.Job, reason string) error {
	entry, err := json.Marshal(DeadLetter{Job: job, Reason: reason, FailedAt: q.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.Processing, 1, receipt)
		pipe.LPush(ctx, q.keys.Dead, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter job %s: %w", job.ID, err)
	}

	q.logger.Warn("job dead-lettered",
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempts", job.Attempts,
		"reason", reason)
	return nil
}

// PromoteDue moves retries whose backoff has elapsed back to the ready list
// and returns how many were moved.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.rdb, []string{q.keys.Retry, q.keys.Ready}, now, promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to promote due retries: %w", err)
	}
	return n, nil
}

func (q *Queue) promoteLoop() {
	defer q.stopped.Done()

	ticker := time.NewTicker(q.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			n, err := q.PromoteDue(context.Background())
			if err != nil {
				q.logger.Error("retry promotion failed", "error", err)
				continue
			}
			if n > 0 {
				q.logger.Debug("promoted due retries", "count", n)
			}
		}
	}
}

// RequeueInFlight moves every entry on the processing list back to the ready
// list. Call it at start-up, before any worker runs, to recover deliveries a
// crashed process never acknowledged.
func (q *Queue) RequeueInFlight(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.rdb.RPopLPush(ctx, q.keys.Processing, q.keys.Ready).Err()
		if errors.Is(err, redis.Nil) {
			if moved > 0 {
				q.logger.Info("requeued in-flight jobs", "count", moved)
			}
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue in-flight jobs: %w", err)
		}
		moved++
	}
}

// Len returns the number of jobs waiting on the ready list.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.keys.Ready).Result()
}

// DeadLetters returns up to limit of the most recent dead letters.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	raw, err := q.rdb.LRange(ctx, q.keys.Dead, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(r), &dl); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}

// Close stops the retry promoter and makes further Enqueue and Dequeue calls
// fail with task.ErrQueueClosed. It does not close the Redis client.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.stopped.Wait()
	q.logger.Info("job queue closed")
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
