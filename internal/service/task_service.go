package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/cache"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/store"
	"github.com/phrazzld/taskd/internal/task"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/phrazzld/taskd/internal/service"

// TaskServiceConfig tunes the engine.
type TaskServiceConfig struct {
	// BatchConcurrency bounds how many ids of a batch run at once.
	BatchConcurrency int
}

// DefaultTaskServiceConfig returns the default engine settings.
func DefaultTaskServiceConfig() TaskServiceConfig {
	return TaskServiceConfig{BatchConcurrency: 8}
}

// TaskService is the task lifecycle engine. It is safe for concurrent use.
type TaskService struct {
	tx     store.Transactor
	tasks  store.TaskStore
	users  store.UserStore
	cache  *cache.Policy
	queue  task.Queue
	config TaskServiceConfig

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *engineMetrics
	now     func() time.Time
}

// The engine drives the worker and feeds the sweeper.
var (
	_ task.TaskEngine    = (*TaskService)(nil)
	_ task.OverdueFinder = (*TaskService)(nil)
)

// NewTaskService creates a new TaskService.
// It returns an error if any required dependency is nil.
func NewTaskService(
	tx store.Transactor,
	tasks store.TaskStore,
	users store.UserStore,
	cachePolicy *cache.Policy,
	queue task.Queue,
	config TaskServiceConfig,
	logger *slog.Logger,
) (*TaskService, error) {
	if tx == nil {
		return nil, errors.New("transactor cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if users == nil {
		return nil, errors.New("user store cannot be nil")
	}
	if cachePolicy == nil {
		return nil, errors.New("cache policy cannot be nil")
	}
	if queue == nil {
		return nil, errors.New("job queue cannot be nil")
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = DefaultTaskServiceConfig().BatchConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		tx:      tx,
		tasks:   tasks,
		users:   users,
		cache:   cachePolicy,
		queue:   queue,
		config:  config,
		logger:  logger.With("component", "task_service"),
		tracer:  otel.Tracer(instrumentationName),
		metrics: newEngineMetrics(),
		now:     time.Now,
	}, nil
}

// startSpan opens a span for op and returns a context carrying it and the
// request logger.
func (s *TaskService) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := s.tracer.Start(ctx, "TaskService."+op, trace.WithAttributes(attrs...))
	return ctx, span, logger.FromContextOrDefault(ctx, s.logger)
}

// finish records err on span, counts the operation and ends the span.
func (s *TaskService) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errorKind(err)
		span.RecordError(err)
		if outcome == "storage" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	s.metrics.operations.Add(ctx, 1, metricAttrs(op, outcome))
	span.End()
}

// Create validates input, inserts the task after checking its owner exists,
// invalidates the collection caches and enqueues the initial status job.
// If the enqueue fails the committed task is returned with a *QueueError.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (_ *domain.Task, err error) {
	ctx, span, log := s.startSpan(ctx, "Create", attribute.String("user.id", in.UserID.String()))
	defer func() { s.finish(ctx, span, "create", err) }()

	t, err := domain.NewTask(in.UserID, in.Title, in.Description, in.Status, in.Priority, in.DueDate)
	if err != nil {
		log.Debug("rejected invalid task", "error", err)
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		exists, err := s.users.WithTx(tx).Exists(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewValidationError("user_id", "does not reference an existing user", nil)
		}
		return s.tasks.WithTx(tx).Create(ctx, t)
	})
	if err != nil {
		err = mapStoreError("create", err)
		if IsStorage(err) {
			log.Error("failed to create task", "error", err, "user_id", in.UserID)
		}
		return nil, err
	}

	log.Info("task created", "task_id", t.ID, "user_id", t.UserID, "status", t.Status)

	s.cache.InvalidateCollections(ctx)

	if qerr := s.enqueueStatus(ctx, t); qerr != nil {
		return t, qerr
	}
	return t, nil
}

// FindByID returns a task, consulting the cache first.
func (s *TaskService) FindByID(ctx context.Context, id uuid.UUID) (_ *domain.Task, err error) {
	ctx, span, log := s.startSpan(ctx, "FindByID", attribute.String("task.id", id.String()))
	defer func() { s.finish(ctx, span, "find_by_id", err) }()

	key := cache.FindOneKey(id)

	var cached domain.Task
	if s.cache.Load(ctx, key, &cached) {
		s.metrics.cacheHit(ctx, "find_one", true)
		return &cached, nil
	}
	s.metrics.cacheHit(ctx, "find_one", false)

	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		err = mapStoreError("find_by_id", err)
		if IsStorage(err) {
			log.Error("failed to load task", "error", err, "task_id", id)
		}
		return nil, err
	}

	s.cache.Store(ctx, key, t, s.cache.TTLs().FindOne)
	return t, nil
}

// FindAll returns one page of tasks matching filter, consulting the cache first.
func (s *TaskService) FindAll(ctx context.Context, filter TaskFilter) (_ *TaskPage, err error) {
	ctx, span, log := s.startSpan(ctx, "FindAll")
	defer func() { s.finish(ctx, span, "find_all", err) }()

	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	key, keyErr := cache.FindAllKey(f)
	if keyErr != nil {
		log.Warn("cannot build list cache key", "error", keyErr)
	} else {
		var cached TaskPage
		if s.cache.Load(ctx, key, &cached) {
			s.metrics.cacheHit(ctx, "find_all", true)
			return &cached, nil
		}
		s.metrics.cacheHit(ctx, "find_all", false)
	}

	items, total, err := s.tasks.Find(ctx, store.TaskQuery{
		Status:   f.Status,
		Priority: f.Priority,
		Search:   f.Search,
		Offset:   (f.Page - 1) * f.Limit,
		Limit:    f.Limit,
	})
	if err != nil {
		err = mapStoreError("find_all", err)
		log.Error("failed to list tasks", "error", err)
		return nil, err
	}
	if items == nil {
		items = []*domain.Task{}
	}

	page := &TaskPage{
		Items:     items,
		Total:     total,
		Page:      f.Page,
		Limit:     f.Limit,
		PageCount: (total + f.Limit - 1) / f.Limit,
	}

	if keyErr == nil {
		s.cache.Store(ctx, key, page, s.cache.TTLs().FindAll)
	}
	return page, nil
}

// Update applies patch to the task inside one transaction holding the row
// lock. After commit the task's caches are invalidated and, if the status
// changed, a status-update job is enqueued. A patch that changes nothing is
// not written.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (_ *domain.Task, err error) {
	ctx, span, log := s.startSpan(ctx, "Update", attribute.String("task.id", id.String()))
	defer func() { s.finish(ctx, span, "update", err) }()

	var (
		updated       *domain.Task
		statusChanged bool
	)
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ts := s.tasks.WithTx(tx)

		current, err := ts.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if patch.Stale(current) {
			return ErrPreconditionFailed
		}
		if !patch.Changes(current) {
			updated = current
			return nil
		}

		changed, err := patch.Apply(current)
		if err != nil {
			return err
		}
		if err := ts.Update(ctx, current); err != nil {
			return err
		}
		updated, statusChanged = current, changed
		return nil
	})
	if err != nil {
		err = mapStoreError("update", err)
		if IsStorage(err) {
			log.Error("failed to update task", "error", err, "task_id", id)
		}
		return nil, err
	}

	s.cache.InvalidateTask(ctx, id)

	log.Info("task updated", "task_id", id, "status", updated.Status, "status_changed", statusChanged)

	if statusChanged {
		if qerr := s.enqueueStatus(ctx, updated); qerr != nil {
			return updated, qerr
		}
	}
	return updated, nil
}

// Remove deletes the task inside one transaction and invalidates its caches.
// No job is enqueued.
func (s *TaskService) Remove(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span, log := s.startSpan(ctx, "Remove", attribute.String("task.id", id.String()))
	defer func() { s.finish(ctx, span, "remove", err) }()

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ts := s.tasks.WithTx(tx)
		if _, err := ts.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		return ts.Delete(ctx, id)
	})
	if err != nil {
		err = mapStoreError("remove", err)
		if IsStorage(err) {
			log.Error("failed to delete task", "error", err, "task_id", id)
		}
		return err
	}

	s.cache.InvalidateTask(ctx, id)
	log.Info("task deleted", "task_id", id)
	return nil
}

// BatchProcess applies action to every id independently and returns one
// result per id in input order. One failure never aborts another.
func (s *TaskService) BatchProcess(ctx context.Context, ids []uuid.UUID, action BatchAction) (_ []BatchResult, err error) {
	ctx, span, log := s.startSpan(ctx, "BatchProcess",
		attribute.String("batch.action", string(action)),
		attribute.Int("batch.size", len(ids)))
	defer func() { s.finish(ctx, span, "batch", err) }()

	if len(ids) == 0 {
		return nil, domain.NewValidationError("taskIds", "must not be empty", nil)
	}
	if len(ids) > MaxBatchSize {
		return nil, domain.NewValidationError("taskIds", "must not contain more than 100 ids", nil)
	}
	if !action.Valid() {
		return nil, domain.NewValidationError("action", "must be one of complete, delete", nil)
	}

	results := make([]BatchResult, len(ids))

	var g errgroup.Group
	g.SetLimit(s.config.BatchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.batchOne(ctx, id, action)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	log.Info("batch processed", "action", action, "count", len(ids), "failed", failed)

	return results, nil
}

func (s *TaskService) batchOne(ctx context.Context, id uuid.UUID, action BatchAction) BatchResult {
	switch action {
	case BatchComplete:
		completed := domain.TaskStatusCompleted
		t, err := s.Update(ctx, id, domain.TaskPatch{Status: &completed})
		return BatchResult{TaskID: id, Success: t != nil, Task: t, Err: err}
	default:
		err := s.Remove(ctx, id)
		return BatchResult{TaskID: id, Success: err == nil, Err: err}
	}
}

// GetStats returns aggregate counts, consulting the cache first.
func (s *TaskService) GetStats(ctx context.Context) (_ *domain.TaskStats, err error) {
	ctx, span, log := s.startSpan(ctx, "GetStats")
	defer func() { s.finish(ctx, span, "stats", err) }()

	var cached domain.TaskStats
	if s.cache.Load(ctx, cache.StatsKey, &cached) {
		s.metrics.cacheHit(ctx, "stats", true)
		return &cached, nil
	}
	s.metrics.cacheHit(ctx, "stats", false)

	stats, err := s.tasks.Stats(ctx)
	if err != nil {
		err = mapStoreError("stats", err)
		log.Error("failed to compute stats", "error", err)
		return nil, err
	}

	s.cache.Store(ctx, cache.StatsKey, stats, s.cache.TTLs().Stats)
	return stats, nil
}

// FindOverdue returns pending tasks past their due date. It never uses the cache.
func (s *TaskService) FindOverdue(ctx context.Context) (_ []*domain.Task, err error) {
	ctx, span, log := s.startSpan(ctx, "FindOverdue")
	defer func() { s.finish(ctx, span, "find_overdue", err) }()

	tasks, err := s.tasks.FindOverdue(ctx, s.now())
	if err != nil {
		err = mapStoreError("find_overdue", err)
		log.Error("failed to find overdue tasks", "error", err)
		return nil, err
	}
	return tasks, nil
}

// enqueueStatus publishes the committed status of t.
func (s *TaskService) enqueueStatus(ctx context.Context, t *domain.Task) error {
	job := task.NewStatusUpdateJob(t.ID, t.Status, t.UpdatedAt)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to enqueue status update",
			"error", err,
			"task_id", t.ID,
			"status", t.Status)
		return &QueueError{Operation: "enqueue status update", TaskID: t.ID, Err: err}
	}
	return nil
}
