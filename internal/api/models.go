package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/service"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=255"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED OVERDUE"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Omitted fields are
// left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"       validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Status      *string    `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED OVERDUE"`
	Priority    *string    `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"dueDate"`
}

// BatchTasksRequest is the body of POST /api/tasks/batch.
type BatchTasksRequest struct {
	TaskIDs []string `json:"taskIds" validate:"required,min=1,max=100,dive,uuid"`
	Action  string   `json:"action"  validate:"required,oneof=complete delete"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	UserID      uuid.UUID  `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskPageResponse is one page of GET /api/tasks.
type TaskPageResponse struct {
	Data      []TaskResponse `json:"data"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	PageCount int            `json:"pageCount"`
}

// BatchResultResponse is the outcome for one id of a batch.
type BatchResultResponse struct {
	TaskID  uuid.UUID     `json:"taskId"`
	Success bool          `json:"success"`
	Result  *TaskResponse `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// DeleteResponse is the body of a successful DELETE.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func toTaskInput(userID uuid.UUID, req CreateTaskRequest) service.CreateTaskInput {
	return service.CreateTaskInput{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	}
}

func toTaskPatch(req UpdateTaskRequest) domain.TaskPatch {
	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		patch.Priority = &p
	}
	return patch
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func pageToResponse(p *service.TaskPage) TaskPageResponse {
	data := make([]TaskResponse, 0, len(p.Items))
	for _, t := range p.Items {
		data = append(data, taskToResponse(t))
	}
	return TaskPageResponse{
		Data:      data,
		Total:     p.Total,
		Page:      p.Page,
		Limit:     p.Limit,
		PageCount: p.PageCount,
	}
}

func batchToResponse(results []service.BatchResult) []BatchResultResponse {
	out := make([]BatchResultResponse, 0, len(results))
	for _, res := range results {
		item := BatchResultResponse{TaskID: res.TaskID, Success: res.Success}
		if res.Task != nil {
			tr := taskToResponse(res.Task)
			item.Result = &tr
		}
		if res.Err != nil {
			if res.Success {
				item.Warning = "status notification could not be queued"
			} else {
				item.Error = GetSafeErrorMessage(res.Err)
			}
		}
		out = append(out, item)
	}
	return out
}
