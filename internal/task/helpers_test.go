package task

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine is a TaskEngine over a map with hook points for failures.
type fakeEngine struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	updateErr   error
	partialErr  error
	updateCalls int
}

func newFakeEngine(tasks ...*domain.Task) *fakeEngine {
	e := &fakeEngine{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, t := range tasks {
		e.tasks[t.ID] = t.Clone()
	}
	return e
}

func (e *fakeEngine) FindByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (e *fakeEngine) Update(_ context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateCalls++

	if e.updateErr != nil {
		return nil, e.updateErr
	}
	t, ok := e.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if patch.Stale(t) {
		return nil, domain.ErrStaleUpdate
	}
	if _, err := patch.Apply(t); err != nil {
		return nil, err
	}
	return t.Clone(), e.partialErr
}

func (e *fakeEngine) status(id uuid.UUID) domain.TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks[id].Status
}

func (e *fakeEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateCalls
}
