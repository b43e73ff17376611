package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/jobrunner-go/internal/task"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)

	u := &User{Username: "alice", HashedPassword: "hash", TaskQuota: 100}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsAdmin)

	byID, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
}

func TestUserRepository_Create_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)

	require.NoError(t, users.Create(ctx, &User{Username: "alice", HashedPassword: "h"}))
	err := users.Create(ctx, &User{Username: "alice", HashedPassword: "h2"})
	assert.ErrorIs(t, err, task.ErrUsernameTaken)
}

func TestUserRepository_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)

	_, err := users.GetByID(ctx, 42)
	assert.ErrorIs(t, err, task.ErrUserNotFound)

	_, err = users.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, task.ErrUserNotFound)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)
	u := seedUser(t, users, "alice")
	seedUser(t, users, "bob")

	// Rename to a free name and change the password hash.
	updated, err := users.UpdateProfile(ctx, u.ID, "alice2", "newhash")
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "newhash", updated.HashedPassword)

	// Renaming onto a taken name fails.
	_, err = users.UpdateProfile(ctx, u.ID, "bob", "")
	assert.ErrorIs(t, err, task.ErrUsernameTaken)

	// Keeping your own name is fine.
	_, err = users.UpdateProfile(ctx, u.ID, "alice2", "")
	assert.NoError(t, err)
}

func TestUserRepository_Promote(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)
	u := seedUser(t, users, "alice")

	require.NoError(t, users.Promote(ctx, u.ID))
	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.ErrorIs(t, users.Promote(ctx, 999), task.ErrUserNotFound)
	assert.ErrorIs(t, users.PromoteByUsername(ctx, "ghost"), task.ErrUserNotFound)

	require.NoError(t, users.PromoteByUsername(ctx, "alice"))
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	_, users := setupRepos(t)
	seedUser(t, users, "alice")
	seedUser(t, users, "bob")

	got, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "bob", got[1].Username)
}
