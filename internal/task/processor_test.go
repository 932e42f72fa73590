package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingTask(t *testing.T, due *time.Time) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "task", "", domain.TaskStatusPending, "", due)
	require.NoError(t, err)
	return task
}

func statusJob(taskID, status string, issuedAt *time.Time) Job {
	job, _ := NewJob(KindStatusUpdate, StatusUpdatePayload{TaskID: taskID, Status: status, IssuedAt: issuedAt})
	return job
}

func TestJobProcessor_StatusUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies status", func(t *testing.T) {
		task := newPendingTask(t, nil)
		engine := newFakeEngine(task)
		p := NewJobProcessor(engine, setupTestLogger())

		err := p.Process(ctx, NewStatusUpdateJob(task.ID, domain.TaskStatusInProgress, task.UpdatedAt))
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusInProgress, engine.status(task.ID))
	})

	t.Run("redelivery is idempotent", func(t *testing.T) {
		task := newPendingTask(t, nil)
		engine := newFakeEngine(task)
		p := NewJobProcessor(engine, setupTestLogger())

		job := statusJob(task.ID.String(), "COMPLETED", nil)
		require.NoError(t, p.Process(ctx, job))
		require.NoError(t, p.Process(ctx, job))
		assert.Equal(t, domain.TaskStatusCompleted, engine.status(task.ID))
	})

	t.Run("stale job is a no-op success", func(t *testing.T) {
		task := newPendingTask(t, nil)
		engine := newFakeEngine(task)
		p := NewJobProcessor(engine, setupTestLogger())

		issued := task.UpdatedAt.Add(-time.Minute)
		err := p.Process(ctx, NewStatusUpdateJob(task.ID, domain.TaskStatusCompleted, issued))
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, engine.status(task.ID))
	})

	t.Run("committed write with follow-up failure succeeds", func(t *testing.T) {
		task := newPendingTask(t, nil)
		engine := newFakeEngine(task)
		engine.partialErr = errors.New("enqueue failed")
		p := NewJobProcessor(engine, setupTestLogger())

		err := p.Process(ctx, statusJob(task.ID.String(), "COMPLETED", nil))
		assert.NoError(t, err)
	})

	t.Run("storage failure is transient", func(t *testing.T) {
		task := newPendingTask(t, nil)
		engine := newFakeEngine(task)
		engine.updateErr = errors.New("connection reset")
		p := NewJobProcessor(engine, setupTestLogger())

		err := p.Process(ctx, statusJob(task.ID.String(), "COMPLETED", nil))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
	})
}

func TestJobProcessor_PermanentFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	task := newPendingTask(t, nil)

	tests := []struct {
		name string
		job  Job
	}{
		{"missing task id", statusJob("", "COMPLETED", nil)},
		{"unparseable task id", statusJob("not-a-uuid", "COMPLETED", nil)},
		{"unknown status", statusJob(task.ID.String(), "DONE", nil)},
		{"task not found", statusJob(uuid.NewString(), "COMPLETED", nil)},
		{"malformed payload", Job{ID: uuid.New(), Kind: KindStatusUpdate, Payload: json.RawMessage(`"x"`)}},
		{"unknown kind", Job{ID: uuid.New(), Kind: "reindex", Payload: json.RawMessage(`{}`)}},
		{"overdue with bad id", Job{ID: uuid.New(), Kind: KindOverdueNotification, Payload: json.RawMessage(`{"taskId":"nope"}`)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newFakeEngine(task)
			p := NewJobProcessor(engine, setupTestLogger())

			err := p.Process(ctx, tc.job)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPermanent)
			assert.Equal(t, domain.TaskStatusPending, engine.status(task.ID))
		})
	}
}

func TestJobProcessor_OverdueNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	t.Run("marks pending past-due task overdue", func(t *testing.T) {
		task := newPendingTask(t, &past)
		engine := newFakeEngine(task)
		p := NewJobProcessor(engine, setupTestLogger())

		require.NoError(t, p.Process(ctx, NewOverdueNotificationJob(task.ID)))
		assert.Equal(t, domain.TaskStatusOverdue, engine.status(task.ID))

		require.NoError(t, p.Process(ctx, NewOverdueNotificationJob(task.ID)))
		assert.Equal(t, 1, engine.calls(), "second delivery must not write again")
	})

	t.Run("ignores tasks that are no longer eligible", func(t *testing.T) {
		notDue := newPendingTask(t, &future)
		done := newPendingTask(t, &past)
		done.Status = domain.TaskStatusCompleted
		engine := newFakeEngine(notDue, done)
		p := NewJobProcessor(engine, setupTestLogger())

		require.NoError(t, p.Process(ctx, NewOverdueNotificationJob(notDue.ID)))
		require.NoError(t, p.Process(ctx, NewOverdueNotificationJob(done.ID)))
		require.NoError(t, p.Process(ctx, NewOverdueNotificationJob(uuid.New())))
		assert.Equal(t, 0, engine.calls())
		assert.Equal(t, domain.TaskStatusCompleted, engine.status(done.ID))
	})

	t.Run("storage failure is transient", func(t *testing.T) {
		task := newPendingTask(t, &past)
		engine := newFakeEngine(task)
		engine.updateErr = errors.New("timeout")
		p := NewJobProcessor(engine, setupTestLogger())

		err := p.Process(ctx, NewOverdueNotificationJob(task.ID))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
	})
}
