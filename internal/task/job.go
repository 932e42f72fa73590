package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
)

// Kind names a job type on the wire.
type Kind string

// Known job kinds
const (
	KindStatusUpdate        Kind = "task-status-update"
	KindOverdueNotification Kind = "overdue-tasks-notification"
)

// ErrMalformedPayload is returned when a job payload cannot be decoded.
var ErrMalformedPayload = errors.New("malformed job payload")

// Job is the envelope stored in a queue.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewJob wraps payload in a fresh envelope.
func NewJob(kind Kind, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Job{
		ID:         uuid.New(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// NewStatusUpdateJob builds a status-update job. issuedAt should be the
// UpdatedAt of the write that produced status; workers ignore the job once the
// task has been modified after that instant.
func NewStatusUpdateJob(taskID uuid.UUID, status domain.TaskStatus, issuedAt time.Time) Job {
	at := issuedAt.UTC()
	job, _ := NewJob(KindStatusUpdate, StatusUpdatePayload{
		TaskID:   taskID.String(),
		Status:   string(status),
		IssuedAt: &at,
	})
	return job
}

// NewOverdueNotificationJob builds an overdue notification for one task.
func NewOverdueNotificationJob(taskID uuid.UUID) Job {
	job, _ := NewJob(KindOverdueNotification, OverdueNotificationPayload{TaskID: taskID.String()})
	return job
}

// Payload is the decoded body of a job. The set of implementations is closed.
type Payload interface {
	kind() Kind
}

// StatusUpdatePayload asks the worker to move a task to Status.
type StatusUpdatePayload struct {
	TaskID   string     `json:"taskId"`
	Status   string     `json:"status"`
	IssuedAt *time.Time `json:"issuedAt,omitempty"`
}

func (StatusUpdatePayload) kind() Kind { return KindStatusUpdate }

// OverdueNotificationPayload reports that a task was found past its due date.
type OverdueNotificationPayload struct {
	TaskID string `json:"taskId"`
}

func (OverdueNotificationPayload) kind() Kind { return KindOverdueNotification }

// UnknownPayload is produced for any kind this build does not recognise.
type UnknownPayload struct {
	Kind Kind
	Raw  json.RawMessage
}

func (p UnknownPayload) kind() Kind { return p.Kind }

// Decode returns the typed payload of j. Unrecognised kinds decode to
// UnknownPayload without error.
func (j Job) Decode() (Payload, error) {
	switch j.Kind {
	case KindStatusUpdate:
		var p StatusUpdatePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return p, nil
	case KindOverdueNotification:
		var p OverdueNotificationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return p, nil
	default:
		return UnknownPayload{Kind: j.Kind, Raw: j.Payload}, nil
	}
}
