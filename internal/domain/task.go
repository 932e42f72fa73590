package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusOverdue    TaskStatus = "OVERDUE"
)

// TaskPriority is the relative importance of a task.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Field limits
const (
	MaxTaskTitleLength       = 255
	MaxTaskDescriptionLength = 10000
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusOverdue:
		return true
	}
	return false
}

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// ParseTaskStatus converts s into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.Valid() {
		return "", NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED, OVERDUE", ErrInvalidTaskStatus)
	}
	return status, nil
}

// ParseTaskPriority converts p into a TaskPriority.
func ParseTaskPriority(p string) (TaskPriority, error) {
	priority := TaskPriority(p)
	if !priority.Valid() {
		return "", NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH", ErrInvalidTaskPriority)
	}
	return priority, nil
}

// Now returns the current UTC time truncated to microseconds, the precision
// PostgreSQL keeps for timestamptz columns.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Task is a unit of work owned by a user.
//
// All timestamps, DueDate included, are stored in UTC truncated to
// microseconds, so a DueDate read back equals the input only at that
// precision.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	UserID      uuid.UUID    `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewTask creates a new Task with a fresh ID and timestamps.
// Empty status and priority fall back to PENDING and MEDIUM.
// Returns a ValidationError if the result violates any task invariant.
func NewTask(
	userID uuid.UUID,
	title, description string,
	status TaskStatus,
	priority TaskPriority,
	dueDate *time.Time,
) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}
	if priority == "" {
		priority = TaskPriorityMedium
	}

	now := Now()
	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     normalizeTime(dueDate),
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task invariants.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrEmptyUserID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "cannot be empty", nil)
	}
	if utf8.RuneCountInString(t.Title) > MaxTaskTitleLength {
		return NewValidationError("title", "is too long", nil)
	}
	if utf8.RuneCountInString(t.Description) > MaxTaskDescriptionLength {
		return NewValidationError("description", "is too long", nil)
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED, OVERDUE", ErrInvalidTaskStatus)
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH", ErrInvalidTaskPriority)
	}
	return nil
}

// IsOverdue reports whether the task is still pending past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.DueDate != nil && t.DueDate.Before(now)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *time.Time

	// IfUnmodifiedSince, when set, makes the update a no-op precondition failure
	// if the task was modified after the given instant.
	IfUnmodifiedSince *time.Time
}

// Empty reports whether the patch changes no fields.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil
}

// Changes reports whether applying the patch would alter any field of t.
func (p TaskPatch) Changes(t *Task) bool {
	if p.Title != nil && *p.Title != t.Title {
		return true
	}
	if p.Description != nil && *p.Description != t.Description {
		return true
	}
	if p.Status != nil && *p.Status != t.Status {
		return true
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		return true
	}
	if p.DueDate != nil && (t.DueDate == nil || !normalizeTime(p.DueDate).Equal(*t.DueDate)) {
		return true
	}
	return false
}

// Stale reports whether t was modified after the patch's IfUnmodifiedSince instant.
func (p TaskPatch) Stale(t *Task) bool {
	return p.IfUnmodifiedSince != nil && t.UpdatedAt.After(*p.IfUnmodifiedSince)
}

// Apply copies the present fields onto t, validates the result and bumps
// UpdatedAt. It reports whether the status changed. On validation failure t
// is left untouched.
func (p TaskPatch) Apply(t *Task) (bool, error) {
	next := t.Clone()

	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.DueDate != nil {
		next.DueDate = normalizeTime(p.DueDate)
	}

	if err := next.Validate(); err != nil {
		return false, err
	}

	statusChanged := next.Status != t.Status
	next.UpdatedAt = Now()
	if !next.UpdatedAt.After(t.UpdatedAt) {
		// Keep UpdatedAt strictly increasing so it can order writes.
		next.UpdatedAt = t.UpdatedAt.Add(time.Microsecond)
	}

	*t = *next
	return statusChanged, nil
}

// TaskStats is the aggregate view over all tasks.
type TaskStats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	InProgress   int `json:"inProgress"`
	Pending      int `json:"pending"`
	Overdue      int `json:"overdue"`
	HighPriority int `json:"highPriority"`
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := t.UTC().Truncate(time.Microsecond)
	return &n
}
