package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/taskd/internal/api/shared"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type limiterFunc func(ctx context.Context, clientID string) (*ratelimit.Result, error)

func (f limiterFunc) Allow(ctx context.Context, clientID string) (*ratelimit.Result, error) {
	return f(ctx, clientID)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	counts := map[string]int64{}
	now := time.Date(2030, 1, 1, 10, 0, 15, 0, time.UTC)
	limiter := limiterFunc(func(_ context.Context, clientID string) (*ratelimit.Result, error) {
		counts[clientID]++
		return ratelimit.NewResult(2, counts[clientID], now), nil
	})

	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := call("10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:5001").Code)

	limited := call("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "45", limited.Header().Get("Retry-After"))
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))

	// Different client, separate budget.
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:5000").Code)
	assert.Equal(t, int64(3), counts["10.0.0.1"])
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	limiter := limiterFunc(func(context.Context, string) (*ratelimit.Result, error) {
		return nil, errors.New("redis down")
	})
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_MemoryLimiter(t *testing.T) {
	t.Parallel()

	h := RateLimit(ratelimit.NewMemory(1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	base, buf := logger.GetTestLogger(t)

	var traceID string
	h := TraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, traceID, 32)
	assert.Equal(t, traceID, rec.Header().Get("X-Trace-ID"))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, traceID, entries[0]["trace_id"])
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	base, buf := logger.GetTestLogger(t)

	h := TraceMiddleware(base)(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fine", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/boom", nil))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "/fine", entries[0]["path"])
	assert.Equal(t, float64(http.StatusOK), entries[0]["status"])
	assert.Equal(t, float64(2), entries[0]["bytes"])
	assert.NotEmpty(t, entries[0]["trace_id"])

	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, float64(http.StatusInternalServerError), entries[1]["status"])
}
