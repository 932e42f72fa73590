package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phrazzld/taskd/internal/api"
	"github.com/phrazzld/taskd/internal/api/middleware"
	"github.com/phrazzld/taskd/internal/cache"
	"github.com/phrazzld/taskd/internal/config"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/postgres"
	"github.com/phrazzld/taskd/internal/platform/redis"
	"github.com/phrazzld/taskd/internal/platform/telemetry"
	"github.com/phrazzld/taskd/internal/ratelimit"
	"github.com/phrazzld/taskd/internal/service"
	"github.com/phrazzld/taskd/internal/service/auth"
	"github.com/phrazzld/taskd/internal/store"
	"github.com/phrazzld/taskd/internal/store/memory"
	"github.com/phrazzld/taskd/internal/task"
)

// jobQueue is what the application needs from a queue backend.
type jobQueue interface {
	task.Queue
	task.Consumer
	Close()
}

// application holds all wired dependencies.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Provider

	db    *sql.DB
	redis *goredis.Client

	queue       jobQueue
	taskService *service.TaskService
	workers     *task.WorkerPool
	sweeper     *task.OverdueSweeper
	router      http.Handler

	// devUser is set only when running on the in-process store.
	devUser *domain.User
}

// newApplication wires every component from cfg. On error, whatever was
// already opened is closed again.
func newApplication(ctx context.Context, cfg *config.Config) (_ *application, err error) {
	l, provider, err := setupAppLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &application{config: cfg, logger: l, telemetry: provider}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	var (
		tx    store.Transactor
		tasks store.TaskStore
		users store.UserStore
	)
	switch cfg.Database.Driver {
	case config.BackendPostgres:
		app.db, err = setupAppDatabase(ctx, cfg.Database, l)
		if err != nil {
			return nil, err
		}
		tx = store.NewSQLTransactor(app.db)
		tasks = postgres.NewPostgresTaskStore(app.db, l)
		users = postgres.NewPostgresUserStore(app.db, l)
	default:
		l.Warn("using in-process record store; data is lost on exit")
		mem := memory.New()
		tx, tasks, users = mem, mem.Tasks(), mem.Users()
	}

	if cfg.UsesRedis() {
		app.redis, err = redis.NewClient(ctx, cfg.Redis, l)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	var cacheBackend cache.Cache = cache.NewMemory()
	if cfg.Cache.Backend == config.BackendRedis {
		cacheBackend = redis.NewCache(app.redis)
	}
	policy := cache.NewPolicy(cacheBackend, cache.TTLs{
		FindOne: cfg.Cache.FindOneTTL,
		FindAll: cfg.Cache.FindAllTTL,
		Stats:   cfg.Cache.StatsTTL,
	}, l)

	retry := task.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseBackoff: cfg.Queue.BaseBackoff,
		MaxBackoff:  cfg.Queue.MaxBackoff,
	}
	if cfg.Queue.Backend == config.BackendRedis {
		q := redis.NewQueue(app.redis, redis.QueueOptions{Name: cfg.Queue.Name, Policy: retry}, l)
		app.queue = q
		// Deliveries left on the processing list by a previous run.
		if _, rerr := q.RequeueInFlight(ctx); rerr != nil {
			l.Warn("failed to requeue in-flight jobs", "error", rerr)
		}
	} else {
		app.queue = task.NewMemoryQueue(cfg.Queue.Capacity, retry, l)
	}

	app.taskService, err = service.NewTaskService(tx, tasks, users, policy, app.queue,
		service.TaskServiceConfig{BatchConcurrency: cfg.Worker.BatchConcurrency}, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.workers = task.NewWorkerPool(app.queue, task.NewJobProcessor(app.taskService, l), task.WorkerPoolConfig{
		WorkerCount: cfg.Worker.Count,
		PollBackoff: cfg.Worker.PollBackoff,
	}, l)

	if cfg.Sweeper.Enabled {
		app.sweeper = task.NewOverdueSweeper(app.taskService, app.queue, task.SweeperConfig{
			Interval:   cfg.Sweeper.Interval,
			RunOnStart: cfg.Sweeper.RunOnStart,
		}, l)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	if cfg.Database.Driver == config.BackendMemory {
		if app.devUser, err = seedDevUser(ctx, users, jwtService, l); err != nil {
			return nil, err
		}
	}

	app.router = api.NewRouter(api.RouterConfig{
		Tasks:       api.NewTaskHandler(app.taskService, l),
		Auth:        middleware.NewAuthMiddleware(jwtService),
		RateLimiter: app.rateLimiter(),
		Logger:      l,
		Tracing:     cfg.Telemetry.Enabled,
	})

	l.Info("application initialized")
	return app, nil
}

// devUserEmail owns the tasks of an in-process deployment.
const devUserEmail = "dev@taskd.local"

// seedDevUser registers the development user in an in-process store, which
// has no other way to gain users, and logs a bearer token for it.
func seedDevUser(ctx context.Context, users store.UserStore, jwtService auth.JWTService, logger *slog.Logger) (*domain.User, error) {
	user, err := store.EnsureUser(ctx, users, devUserEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to seed development user: %w", err)
	}
	token, err := jwtService.GenerateToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue development token: %w", err)
	}
	logger.Warn("development user seeded; do not use the in-process store in production",
		"user_id", user.ID,
		"email", user.Email,
		"token", token)
	return user, nil
}

// rateLimiter returns the configured limiter, or nil when limiting is off.
func (app *application) rateLimiter() ratelimit.Limiter {
	limit := app.config.Server.RateLimitPerMinute
	switch {
	case limit <= 0:
		return nil
	case app.redis != nil:
		return redis.NewRateLimiter(app.redis, limit)
	default:
		return ratelimit.NewMemory(limit)
	}
}

// Run starts the background workers and serves HTTP until ctx is canceled,
// then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	app.workers.Start()
	if app.sweeper != nil {
		app.sweeper.Start()
	}

	err := app.startHTTPServer(ctx, app.router)
	app.cleanup()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work and releases resources in dependency order.
// It is safe to call on a partially built application.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.workers != nil {
		app.workers.Stop()
	}
	if app.queue != nil {
		app.queue.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	if app.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.telemetry.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error("error flushing telemetry", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
