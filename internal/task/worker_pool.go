package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskd/internal/platform/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobHandler processes a single job.
type JobHandler interface {
	Process(ctx context.Context, job Job) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, job Job) error

// Process implements JobHandler.
func (f JobHandlerFunc) Process(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Job outcomes recorded in logs and metrics
const (
	outcomeSucceeded = "succeeded"
	outcomeRetried   = "retried"
	outcomeRejected  = "rejected"
)

// WorkerPool manages a pool of worker goroutines that drain a Consumer.
// It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	consumer    Consumer
	handler     JobHandler
	workerCount int
	pollBackoff time.Duration

	// wg tracks active worker goroutines for clean shutdown
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	logger  *slog.Logger
	metrics *jobMetrics

	// errorHandler is called when a job fails. If nil, errors are only logged.
	errorHandler func(job Job, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// PollBackoff is how long a worker waits after a failed Dequeue.
	PollBackoff time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		PollBackoff: time.Second,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(consumer Consumer, handler JobHandler, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	pollBackoff := config.PollBackoff
	if pollBackoff <= 0 {
		pollBackoff = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		consumer:    consumer,
		handler:     handler,
		workerCount: workerCount,
		pollBackoff: pollBackoff,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		metrics:     newJobMetrics(),
	}
}

// SetErrorHandler allows setting a custom error handler for job failures
func (p *WorkerPool) SetErrorHandler(handler func(job Job, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals all workers to stop and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		d, err := p.consumer.Dequeue(p.ctx)
		if err != nil {
			switch {
			case p.ctx.Err() != nil:
				log.Debug("stopping worker")
				return
			case errors.Is(err, ErrQueueClosed):
				log.Debug("queue closed, stopping worker")
				return
			}

			log.Error("failed to dequeue job", "error", err)
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.pollBackoff):
			}
			continue
		}

		p.process(d, log)
	}
}

// process runs one delivery to completion. It deliberately ignores pool
// cancellation so that Stop waits for in-flight work instead of aborting it.
func (p *WorkerPool) process(d *Delivery, log *slog.Logger) {
	job := d.Job
	log = log.With(
		"job_id", job.ID,
		"job_kind", job.Kind,
		"attempt", job.Attempts+1,
	)
	ctx := logger.WithLogger(context.WithoutCancel(p.ctx), log)

	start := time.Now()
	err := p.safeProcess(ctx, job)
	elapsed := time.Since(start)

	outcome := outcomeSucceeded
	var settleErr error
	switch {
	case err == nil:
		settleErr = p.consumer.Ack(ctx, d)
		log.Debug("job processed", "duration_ms", elapsed.Milliseconds())
	case errors.Is(err, ErrPermanent):
		outcome = outcomeRejected
		log.Error("job failed permanently", "error", err)
		settleErr = p.consumer.Reject(ctx, d, err)
	default:
		outcome = outcomeRetried
		log.Warn("job failed, will retry", "error", err)
		settleErr = p.consumer.Nack(ctx, d, err)
	}

	if settleErr != nil {
		log.Error("failed to settle job delivery", "outcome", outcome, "error", settleErr)
	}
	if err != nil && p.errorHandler != nil {
		p.errorHandler(job, err)
	}

	attrs := metric.WithAttributes(
		attribute.String("job.kind", string(job.Kind)),
		attribute.String("job.outcome", outcome),
	)
	p.metrics.processed.Add(ctx, 1, attrs)
	p.metrics.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// safeProcess converts a handler panic into a permanent failure.
func (p *WorkerPool) safeProcess(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(errors.New("job handler panicked"))
			logger.FromContext(ctx).Error("recovered from job handler panic", "panic", r)
		}
	}()
	return p.handler.Process(ctx, job)
}
