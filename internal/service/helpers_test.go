package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/cache"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/service"
	"github.com/phrazzld/taskd/internal/store"
	"github.com/phrazzld/taskd/internal/store/memory"
	"github.com/phrazzld/taskd/internal/task"
	"github.com/stretchr/testify/require"
)

// testEnv bundles an engine with the in-process backends it runs on.
type testEnv struct {
	svc   *service.TaskService
	db    *memory.Store
	cache *cache.Memory
	queue task.Queue
	user  *domain.User
}

type envOption func(*envConfig)

type envConfig struct {
	queue task.Queue
	cache cache.Cache
	tasks func(store.TaskStore) store.TaskStore
}

func withQueue(q task.Queue) envOption {
	return func(c *envConfig) { c.queue = q }
}

func withCache(c cache.Cache) envOption {
	return func(cfg *envConfig) { cfg.cache = c }
}

func withTaskStore(wrap func(store.TaskStore) store.TaskStore) envOption {
	return func(c *envConfig) { c.tasks = wrap }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mem := cache.NewMemory()
	cfg := envConfig{
		cache: mem,
		queue: task.NewMemoryQueue(1024, task.DefaultRetryPolicy(), discardLogger()),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := memory.New()
	var tasks store.TaskStore = db.Tasks()
	if cfg.tasks != nil {
		tasks = cfg.tasks(tasks)
	}

	policy := cache.NewPolicy(cfg.cache, cache.DefaultTTLs(), discardLogger())
	svc, err := service.NewTaskService(db, tasks, db.Users(), policy, cfg.queue,
		service.DefaultTaskServiceConfig(), discardLogger())
	require.NoError(t, err)

	user, err := domain.NewUser(fmt.Sprintf("%s@example.com", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.Users().Create(context.Background(), user))

	return &testEnv{svc: svc, db: db, cache: mem, queue: cfg.queue, user: user}
}

func (e *testEnv) create(t *testing.T, title string) *domain.Task {
	t.Helper()
	created, err := e.svc.Create(context.Background(), service.CreateTaskInput{
		UserID: e.user.ID,
		Title:  title,
	})
	require.NoError(t, err)
	return created
}

// recordingQueue remembers every enqueued job and optionally fails.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []task.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job task.Job) error {
	return q.EnqueueBulk(ctx, []task.Job{job})
}

func (q *recordingQueue) EnqueueBulk(_ context.Context, jobs []task.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, jobs...)
	return nil
}

func (q *recordingQueue) Jobs() []task.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]task.Job(nil), q.jobs...)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errCacheDown = errors.New("cache unavailable")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}

func (brokenCache) Delete(context.Context, ...string) error { return errCacheDown }

func (brokenCache) DeleteByPrefix(context.Context, string) error { return errCacheDown }

// failingTaskStore overrides selected TaskStore calls with an error.
type failingTaskStore struct {
	store.TaskStore
	createErr error
	findErr   error
}

func (f *failingTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return f }

func (f *failingTaskStore) Create(ctx context.Context, t *domain.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.TaskStore.Create(ctx, t)
}

func (f *failingTaskStore) Find(ctx context.Context, q store.TaskQuery) ([]*domain.Task, int, error) {
	if f.findErr != nil {
		return nil, 0, f.findErr
	}
	return f.TaskStore.Find(ctx, q)
}
