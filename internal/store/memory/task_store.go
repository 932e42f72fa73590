package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/store"
)

// TaskStore implements store.TaskStore in memory.
type TaskStore struct {
	s *Store
}

// Compile-time check
var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore. The in-memory transaction is carried by
// the context, so the same store is returned.
func (ts *TaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return ts
}

// Create implements store.TaskStore.
func (ts *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return ts.s.write(ctx, func(st *state) error {
		if _, ok := st.users[task.UserID]; !ok {
			return store.NewStoreError("task", "create", "owner does not exist", store.ErrInvalidEntity)
		}
		if _, ok := st.tasks[task.ID]; ok {
			return store.NewStoreError("task", "create", "id already exists", store.ErrDuplicate)
		}
		st.tasks[task.ID] = task.Clone()
		return nil
	})
}

// GetByID implements store.TaskStore.
func (ts *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var out *domain.Task
	err := ts.s.read(ctx, func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return store.ErrTaskNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate implements store.TaskStore. Transactions are already
// exclusive, so no extra locking is needed.
func (ts *TaskStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return ts.GetByID(ctx, id)
}

// Update implements store.TaskStore.
func (ts *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return ts.s.write(ctx, func(st *state) error {
		if _, ok := st.tasks[task.ID]; !ok {
			return store.ErrTaskNotFound
		}
		st.tasks[task.ID] = task.Clone()
		return nil
	})
}

// Delete implements store.TaskStore.
func (ts *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	return ts.s.write(ctx, func(st *state) error {
		if _, ok := st.tasks[id]; !ok {
			return store.ErrTaskNotFound
		}
		delete(st.tasks, id)
		return nil
	})
}

// Find implements store.TaskStore.
func (ts *TaskStore) Find(ctx context.Context, q store.TaskQuery) ([]*domain.Task, int, error) {
	var matched []*domain.Task
	search := strings.ToLower(q.Search)

	err := ts.s.read(ctx, func(st *state) error {
		for _, t := range st.tasks {
			if q.Status != "" && t.Status != q.Status {
				continue
			}
			if q.Priority != "" && t.Priority != q.Priority {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(t.Title), search) &&
				!strings.Contains(strings.ToLower(t.Description), search) {
				continue
			}
			matched = append(matched, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	page := make([]*domain.Task, 0, end-start)
	for _, t := range matched[start:end] {
		page = append(page, t.Clone())
	}
	return page, total, nil
}

// Stats implements store.TaskStore.
func (ts *TaskStore) Stats(ctx context.Context) (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}
	err := ts.s.read(ctx, func(st *state) error {
		for _, t := range st.tasks {
			stats.Total++
			switch t.Status {
			case domain.TaskStatusCompleted:
				stats.Completed++
			case domain.TaskStatusInProgress:
				stats.InProgress++
			case domain.TaskStatusPending:
				stats.Pending++
			case domain.TaskStatusOverdue:
				stats.Overdue++
			}
			if t.Priority == domain.TaskPriorityHigh {
				stats.HighPriority++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// FindOverdue implements store.TaskStore.
func (ts *TaskStore) FindOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	err := ts.s.read(ctx, func(st *state) error {
		for _, t := range st.tasks {
			if t.IsOverdue(now) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DueDate.Before(*out[j].DueDate)
	})
	return out, nil
}
