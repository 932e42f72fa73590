package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/service"
)

// MockTaskService is a Fn-field fake of the task engine as seen by the HTTP
// layer. Calls with a nil Fn return zero values. Every call is recorded in
// Calls by method name.
type MockTaskService struct {
	CreateFn       func(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error)
	FindByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	FindAllFn      func(ctx context.Context, filter service.TaskFilter) (*service.TaskPage, error)
	UpdateFn       func(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	RemoveFn       func(ctx context.Context, id uuid.UUID) error
	BatchProcessFn func(ctx context.Context, ids []uuid.UUID, action service.BatchAction) ([]service.BatchResult, error)
	GetStatsFn     func(ctx context.Context) (*domain.TaskStats, error)

	Calls []string
}

// Create records the call and delegates to CreateFn.
func (m *MockTaskService) Create(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error) {
	m.Calls = append(m.Calls, "Create")
	if m.CreateFn != nil {
		return m.CreateFn(ctx, in)
	}
	return nil, nil
}

// FindByID records the call and delegates to FindByIDFn.
func (m *MockTaskService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.Calls = append(m.Calls, "FindByID")
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	return nil, nil
}

// FindAll records the call and delegates to FindAllFn.
func (m *MockTaskService) FindAll(ctx context.Context, filter service.TaskFilter) (*service.TaskPage, error) {
	m.Calls = append(m.Calls, "FindAll")
	if m.FindAllFn != nil {
		return m.FindAllFn(ctx, filter)
	}
	return &service.TaskPage{}, nil
}

// Update records the call and delegates to UpdateFn.
func (m *MockTaskService) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	m.Calls = append(m.Calls, "Update")
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, patch)
	}
	return nil, nil
}

// Remove records the call and delegates to RemoveFn.
func (m *MockTaskService) Remove(ctx context.Context, id uuid.UUID) error {
	m.Calls = append(m.Calls, "Remove")
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, id)
	}
	return nil
}

// BatchProcess records the call and delegates to BatchProcessFn.
func (m *MockTaskService) BatchProcess(ctx context.Context, ids []uuid.UUID, action service.BatchAction) ([]service.BatchResult, error) {
	m.Calls = append(m.Calls, "BatchProcess")
	if m.BatchProcessFn != nil {
		return m.BatchProcessFn(ctx, ids, action)
	}
	return nil, nil
}

// GetStats records the call and delegates to GetStatsFn.
func (m *MockTaskService) GetStats(ctx context.Context) (*domain.TaskStats, error) {
	m.Calls = append(m.Calls, "GetStats")
	if m.GetStatsFn != nil {
		return m.GetStatsFn(ctx)
	}
	return &domain.TaskStats{}, nil
}
