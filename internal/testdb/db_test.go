//go:build integration

package testdb_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskDatabaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres://taskd:xxxxx@db:5432/tasks", testdb.MaskDatabaseURL("postgres://taskd:hunter2@db:5432/tasks"))
	assert.Equal(t, "postgres://taskd@db/tasks", testdb.MaskDatabaseURL("postgres://taskd@db/tasks"))
	assert.Equal(t, "[unparseable database url]", testdb.MaskDatabaseURL("postgres://%zz"))
}

func TestWithTx_RollsBack(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	email := "rollback-check@example.com"
	testdb.WithTx(t, db, func(ctx context.Context, tx *sql.Tx) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email) VALUES ($1, $2)`,
			uuid.New(), email)
		require.NoError(t, err)
	})

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&n))
	assert.Zero(t, n)
}
