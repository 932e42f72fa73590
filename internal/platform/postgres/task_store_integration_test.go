//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/postgres"
	"github.com/phrazzld/taskd/internal/store"
	"github.com/phrazzld/taskd/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresTaskStore_Lifecycle(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(ctx context.Context, tx *sql.Tx) {
		users := postgres.NewPostgresUserStore(tx, nil)
		tasks := postgres.NewPostgresTaskStore(tx, nil)

		user, err := domain.NewUser(uuid.NewString() + "@example.com")
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, user))

		due := time.Now().Add(-time.Hour)
		task, err := domain.NewTask(user.ID, "Quarterly 100% review", "notes", "", domain.TaskPriorityHigh, &due)
		require.NoError(t, err)
		require.NoError(t, tasks.Create(ctx, task))

		got, err := tasks.GetByIDForUpdate(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task, got)

		items, total, err := tasks.Find(ctx, store.TaskQuery{Search: "100%", Limit: 10})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, 1)
		assert.NotEmpty(t, items)

		overdue, err := tasks.FindOverdue(ctx, time.Now())
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(overdue))
		for _, o := range overdue {
			ids = append(ids, o.ID)
		}
		assert.Contains(t, ids, task.ID)

		stats, err := tasks.Stats(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.HighPriority, 1)

		require.NoError(t, tasks.Delete(ctx, task.ID))
		_, err = tasks.GetByID(ctx, task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStore_CreateRejectsUnknownOwner(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(ctx context.Context, tx *sql.Tx) {
		task, err := domain.NewTask(uuid.New(), "orphan", "", "", "", nil)
		require.NoError(t, err)
		err = postgres.NewPostgresTaskStore(tx, nil).Create(ctx, task)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}
