package store_test

import (
	"context"
	"testing"

	"github.com/phrazzld/taskd/internal/store"
	"github.com/phrazzld/taskd/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := memory.New().Users()

	first, err := store.EnsureUser(ctx, users, "owner@example.com")
	require.NoError(t, err)

	again, err := store.EnsureUser(ctx, users, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	exists, err := users.Exists(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.EnsureUser(ctx, users, "not-an-email")
	assert.Error(t, err)
}
