package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
)

// ErrPermanent marks a job failure that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// TaskEngine is the part of the lifecycle engine the processor drives.
//
// Update must return a non-nil task whenever its write committed, even if it
// also returns an error for a follow-up step such as enqueueing.
type TaskEngine interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
}

// JobProcessor applies lifecycle jobs through the engine.
type JobProcessor struct {
	engine TaskEngine
	logger *slog.Logger
	now    func() time.Time
}

// NewJobProcessor creates a processor over engine.
func NewJobProcessor(engine TaskEngine, logger *slog.Logger) *JobProcessor {
	if engine == nil {
		panic("engine cannot be nil") // ALLOW-PANIC: required dependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobProcessor{
		engine: engine,
		logger: logger.With(slog.String("component", "job_processor")),
		now:    time.Now,
	}
}

// Process handles one job. A nil error means the job is done, including the
// no-op outcomes. Errors wrapping ErrPermanent must not be retried; any
// other error is transient.
func (p *JobProcessor) Process(ctx context.Context, job Job) error {
	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_kind", string(job.Kind)),
	)
	ctx = logger.WithLogger(ctx, log)

	payload, err := job.Decode()
	if err != nil {
		return Permanent(err)
	}

	switch pl := payload.(type) {
	case StatusUpdatePayload:
		return p.applyStatus(ctx, pl)
	case OverdueNotificationPayload:
		return p.markOverdue(ctx, pl)
	case UnknownPayload:
		log.Warn("unknown job kind")
		return Permanent(fmt.Errorf("unknown job kind %q", pl.Kind))
	default:
		return Permanent(fmt.Errorf("unhandled payload %T", pl))
	}
}

func (p *JobProcessor) applyStatus(ctx context.Context, pl StatusUpdatePayload) error {
	log := logger.FromContext(ctx)

	id, err := parseTaskID(pl.TaskID)
	if err != nil {
		return Permanent(err)
	}
	status, err := domain.ParseTaskStatus(pl.Status)
	if err != nil {
		return Permanent(err)
	}

	patch := domain.TaskPatch{Status: &status, IfUnmodifiedSince: pl.IssuedAt}
	task, err := p.engine.Update(ctx, id, patch)

	switch {
	case err == nil:
		log.Info("task status applied",
			slog.String("task_id", id.String()),
			slog.String("status", string(task.Status)))
		return nil
	case task != nil:
		log.Warn("task status applied with follow-up failure",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil
	case errors.Is(err, domain.ErrStaleUpdate):
		log.Info("discarding stale status update",
			slog.String("task_id", id.String()),
			slog.String("status", string(status)))
		return nil
	case errors.Is(err, domain.ErrTaskNotFound):
		return Permanent(fmt.Errorf("task %s: %w", id, err))
	case errors.Is(err, domain.ErrValidation):
		return Permanent(err)
	default:
		return err
	}
}

func (p *JobProcessor) markOverdue(ctx context.Context, pl OverdueNotificationPayload) error {
	log := logger.FromContext(ctx)

	id, err := parseTaskID(pl.TaskID)
	if err != nil {
		return Permanent(err)
	}

	current, err := p.engine.FindByID(ctx, id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		log.Info("overdue task no longer exists", slog.String("task_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}

	if !current.IsOverdue(p.now()) {
		log.Debug("task no longer overdue",
			slog.String("task_id", id.String()),
			slog.String("status", string(current.Status)))
		return nil
	}

	overdue := domain.TaskStatusOverdue
	since := current.UpdatedAt
	task, err := p.engine.Update(ctx, id, domain.TaskPatch{Status: &overdue, IfUnmodifiedSince: &since})

	switch {
	case err == nil, task != nil:
		log.Info("task marked overdue", slog.String("task_id", id.String()))
		return nil
	case errors.Is(err, domain.ErrStaleUpdate), errors.Is(err, domain.ErrTaskNotFound):
		log.Info("task changed before it could be marked overdue", slog.String("task_id", id.String()))
		return nil
	case errors.Is(err, domain.ErrValidation):
		return Permanent(err)
	default:
		return err
	}
}

func parseTaskID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.NewValidationError("taskId", "is required", domain.ErrInvalidID)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.NewValidationError("taskId", "must be a UUID", domain.ErrInvalidID)
	}
	return id, nil
}
