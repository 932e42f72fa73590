package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/api"
	"github.com/phrazzld/taskd/internal/api/middleware"
	"github.com/phrazzld/taskd/internal/cache"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/ratelimit"
	"github.com/phrazzld/taskd/internal/service"
	"github.com/phrazzld/taskd/internal/service/auth"
	"github.com/phrazzld/taskd/internal/store/memory"
	"github.com/phrazzld/taskd/internal/task"
	"github.com/stretchr/testify/require"
)

const testSecret = "api-test-secret-that-is-long-enough-0123"

// apiEnv is a full HTTP stack over in-process backends.
type apiEnv struct {
	server *httptest.Server
	db     *memory.Store
	queue  *task.MemoryQueue
	user   *domain.User
	token  string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPIEnv(t *testing.T, queueSize int) *apiEnv {
	t.Helper()

	db := memory.New()
	queue := task.NewMemoryQueue(queueSize, task.DefaultRetryPolicy(), discardLogger())
	policy := cache.NewPolicy(cache.NewMemory(), cache.DefaultTTLs(), discardLogger())

	svc, err := service.NewTaskService(db, db.Tasks(), db.Users(), policy, queue,
		service.DefaultTaskServiceConfig(), discardLogger())
	require.NoError(t, err)

	user, err := domain.NewUser(fmt.Sprintf("%s@example.com", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.Users().Create(context.Background(), user))

	jwtSvc := auth.NewTestJWTService(testSecret, time.Hour, nil)
	token, err := jwtSvc.GenerateToken(context.Background(), user.ID)
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Tasks:       api.NewTaskHandler(svc, discardLogger()),
		Auth:        middleware.NewAuthMiddleware(jwtSvc),
		RateLimiter: ratelimit.NewMemory(1000),
		Logger:      discardLogger(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiEnv{server: server, db: db, queue: queue, user: user, token: token}
}

// do sends an authenticated request with an optional JSON body.
func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *http.Response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *apiEnv) createTask(t *testing.T, title string, extra map[string]interface{}) api.TaskResponse {
	t.Helper()

	body := map[string]interface{}{"title": title}
	for k, v := range extra {
		body[k] = v
	}
	resp := e.do(t, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out api.TaskResponse
	decode(t, resp, &out)
	return out
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, resp, &body)
	return body.Error
}
