package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/api/shared"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/redact"
	"github.com/phrazzld/taskd/internal/service"
)

// TaskService is the task engine as used by the HTTP layer.
type TaskService interface {
	Create(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	FindAll(ctx context.Context, filter service.TaskFilter) (*service.TaskPage, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	Remove(ctx context.Context, id uuid.UUID) error
	BatchProcess(ctx context.Context, ids []uuid.UUID, action service.BatchAction) ([]service.BatchResult, error)
	GetStats(ctx context.Context) (*domain.TaskStats, error)
}

var _ TaskService = (*service.TaskService)(nil)

const queueWarning = "task saved but status notification could not be queued"

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	if tasks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("tasks cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks. The authenticated user owns the new task.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, ErrUnauthorized, "")
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.badBody(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	t, err := h.tasks.Create(r.Context(), toTaskInput(userID, req))
	if err != nil && t == nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	h.respondTask(w, r, http.StatusCreated, t, err)
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.tasks.FindAll(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, pageToResponse(page))
}

// GetStats handles GET /tasks/stats.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.GetStats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute task statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	t, err := h.tasks.FindByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	h.respondTask(w, r, http.StatusOK, t, nil)
}

// UpdateTask handles PATCH /tasks/{id}. An If-Unmodified-Since header makes
// the update conditional.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.badBody(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	patch := toTaskPatch(req)
	since, err := parseIfUnmodifiedSince(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	patch.IfUnmodifiedSince = since

	t, err := h.tasks.Update(r.Context(), id, patch)
	if err != nil && t == nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	h.respondTask(w, r, http.StatusOK, t, err)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.tasks.Remove(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DeleteResponse{Success: true})
}

// BatchTasks handles POST /tasks/batch. Each id succeeds or fails on its own;
// the response lists one result per id in request order.
func (h *TaskHandler) BatchTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req BatchTasksRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.badBody(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	ids, err := parseTaskIDs(req.TaskIDs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	results, err := h.tasks.BatchProcess(r.Context(), ids, service.BatchAction(req.Action))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to process batch")
		return
	}

	log.Debug("batch request handled", slog.String("action", req.Action), slog.Int("count", len(ids)))
	shared.RespondWithJSON(w, r, http.StatusOK, batchToResponse(results))
}

// respondTask writes t, adding a Warning header when err reports that the
// write committed but its status job was not queued.
func (h *TaskHandler) respondTask(w http.ResponseWriter, r *http.Request, status int, t *domain.Task, err error) {
	w.Header().Set("Last-Modified", t.UpdatedAt.UTC().Format(http.TimeFormat))

	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("task committed with warning",
			slog.String("task_id", t.ID.String()),
			slog.String("error", redact.Error(err)))
		if service.IsQueue(err) {
			shared.RespondWithWarning(w, r, status, taskToResponse(t), queueWarning)
			return
		}
	}

	shared.RespondWithJSON(w, r, status, taskToResponse(t))
}

func (h *TaskHandler) badBody(w http.ResponseWriter, r *http.Request, err error) {
	msg := "Invalid request format"
	if errors.Is(err, shared.ErrEmptyBody) {
		msg = "Request body is required"
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
}
