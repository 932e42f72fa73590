package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
)

// OverdueFinder lists tasks that are still pending past their due date.
type OverdueFinder interface {
	FindOverdue(ctx context.Context) ([]*domain.Task, error)
}

// SweeperConfig holds configuration for the overdue sweeper
type SweeperConfig struct {
	// Interval between sweeps. If zero, defaults to one hour.
	Interval time.Duration

	// RunOnStart performs a sweep immediately when the sweeper starts.
	RunOnStart bool
}

// DefaultSweeperConfig returns an hourly sweep that does not run at start-up.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: time.Hour}
}

// OverdueSweeper periodically finds overdue tasks and enqueues one overdue
// notification job per task. It never changes task state itself.
type OverdueSweeper struct {
	finder OverdueFinder
	queue  Queue
	config SweeperConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger  *slog.Logger
	metrics *jobMetrics
}

// NewOverdueSweeper creates a sweeper reading from finder and writing to queue.
func NewOverdueSweeper(finder OverdueFinder, queue Queue, config SweeperConfig, logger *slog.Logger) *OverdueSweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &OverdueSweeper{
		finder:  finder,
		queue:   queue,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(slog.String("component", "overdue_sweeper")),
		metrics: newJobMetrics(),
	}
}

// Start begins the periodic sweep on its own goroutine.
func (s *OverdueSweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (s *OverdueSweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *OverdueSweeper) run() {
	defer s.wg.Done()

	s.logger.Info("overdue sweeper started",
		"interval", s.config.Interval.String(),
		"run_on_start", s.config.RunOnStart)

	if s.config.RunOnStart {
		s.sweep()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("overdue sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *OverdueSweeper) sweep() {
	ctx := logger.WithLogger(s.ctx, s.logger)
	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("overdue sweep failed", "error", err)
	}
}

// SweepOnce runs a single sweep and returns the number of jobs enqueued.
func (s *OverdueSweeper) SweepOnce(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("starting overdue tasks check")

	tasks, err := s.finder.FindOverdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("find overdue tasks: %w", err)
	}

	log.Info("found overdue tasks", "count", len(tasks))
	if len(tasks) == 0 {
		return 0, nil
	}

	jobs := make([]Job, 0, len(tasks))
	for _, t := range tasks {
		jobs = append(jobs, NewOverdueNotificationJob(t.ID))
	}

	if err := s.queue.EnqueueBulk(ctx, jobs); err != nil {
		return 0, fmt.Errorf("enqueue overdue notifications: %w", err)
	}

	s.metrics.swept.Add(ctx, int64(len(jobs)))
	log.Info("enqueued overdue notifications", "count", len(jobs))
	return len(jobs), nil
}
