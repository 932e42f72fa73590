package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
)

// Paging limits for FindAll
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxBatchSize caps the number of ids accepted by BatchProcess.
	MaxBatchSize = 100
)

// CreateTaskInput carries the fields of a new task.
type CreateTaskInput struct {
	UserID      uuid.UUID
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// TaskFilter selects a page of tasks. Its JSON encoding is the list cache key,
// so field order and tags must stay stable.
type TaskFilter struct {
	Status   domain.TaskStatus   `json:"status,omitempty"`
	Priority domain.TaskPriority `json:"priority,omitempty"`
	Search   string              `json:"search,omitempty"`
	Page     int                 `json:"page"`
	Limit    int                 `json:"limit"`
}

// Normalize applies defaults and validates the filter.
// Zero Page and Limit fall back to DefaultPage and DefaultLimit.
func (f TaskFilter) Normalize() (TaskFilter, error) {
	f.Search = strings.TrimSpace(f.Search)

	if f.Status != "" && !f.Status.Valid() {
		return f, domain.NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED, OVERDUE", domain.ErrInvalidTaskStatus)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return f, domain.NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH", domain.ErrInvalidTaskPriority)
	}

	if f.Page == 0 {
		f.Page = DefaultPage
	}
	if f.Page < 1 {
		return f, domain.NewValidationError("page", "must be at least 1", nil)
	}

	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		return f, domain.NewValidationError("limit", "must be between 1 and 100", nil)
	}

	return f, nil
}

// TaskPage is one page of FindAll results.
type TaskPage struct {
	Items     []*domain.Task `json:"data"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	PageCount int            `json:"pageCount"`
}

// BatchAction is an operation applied to every id of a batch.
type BatchAction string

// Supported batch actions
const (
	BatchComplete BatchAction = "complete"
	BatchDelete   BatchAction = "delete"
)

// Valid reports whether a is a supported action.
func (a BatchAction) Valid() bool {
	return a == BatchComplete || a == BatchDelete
}

// BatchResult is the outcome for one id of a batch. A QueueError leaves
// Success true with the error attached as a warning.
type BatchResult struct {
	TaskID  uuid.UUID
	Success bool
	Task    *domain.Task
	Err     error
}
