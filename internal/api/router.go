package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskd/internal/api/middleware"
	"github.com/phrazzld/taskd/internal/api/shared"
	"github.com/phrazzld/taskd/internal/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Tasks       *TaskHandler
	Auth        *middleware.AuthMiddleware
	RateLimiter ratelimit.Limiter
	Logger      *slog.Logger

	// Tracing wraps the router in otelhttp so every request gets a server span.
	Tracing bool
}

// NewRouter builds the chi router: public /health, and /api/tasks behind
// rate limiting and authentication.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.TraceMiddleware(cfg.Logger))
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(cfg.RateLimiter))
		}
		r.Use(cfg.Auth.Authenticate)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", cfg.Tasks.CreateTask)
			r.Get("/", cfg.Tasks.ListTasks)
			r.Get("/stats", cfg.Tasks.GetStats)
			r.Post("/batch", cfg.Tasks.BatchTasks)
			r.Get("/{id}", cfg.Tasks.GetTask)
			r.Patch("/{id}", cfg.Tasks.UpdateTask)
			r.Delete("/{id}", cfg.Tasks.DeleteTask)
		})
	})

	if cfg.Tracing {
		return otelhttp.NewHandler(r, "taskd-http",
			otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
				return req.Method + " " + req.URL.Path
			}))
	}
	return r
}
