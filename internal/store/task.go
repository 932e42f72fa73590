package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
)

// TaskQuery selects a page of tasks. Zero-valued filters are not applied.
type TaskQuery struct {
	Status   domain.TaskStatus
	Priority domain.TaskPriority
	// Search is matched case-insensitively as a substring of title or description.
	Search string
	Offset int
	Limit  int
}

// TaskStore defines the interface for task persistence.
// Version: 1.0
type TaskStore interface {
	// Create inserts a new task.
	// Returns store.ErrInvalidEntity if the owner does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByIDForUpdate retrieves a task and locks its row until the enclosing
	// transaction ends. It MUST be called on a store returned by WithTx.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update overwrites the mutable fields of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// Find returns one page of tasks matching q, ordered newest first,
	// and the total number of matching tasks.
	Find(ctx context.Context, q TaskQuery) ([]*domain.Task, int, error)

	// Stats computes aggregate counts over all tasks in a single query.
	Stats(ctx context.Context) (*domain.TaskStats, error)

	// FindOverdue returns PENDING tasks whose due date is strictly before now.
	FindOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	WithTx(tx *sql.Tx) TaskStore
}
