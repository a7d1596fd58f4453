package repository

import (
	"context"
	"testing"
	"time"

	"doubtiq-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryCreateAndFind(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	user := &model.User{Name: "Alice", Email: "alice@x.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	found, err := repo.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, model.RoleUser, found.Role)
	assert.True(t, found.IsActive)
	assert.Nil(t, found.LastLoginAt)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	_, err = repo.FindByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{Name: "A", Email: "dup@x.com", Password: "h"}))
	err := repo.Create(ctx, &model.User{Name: "B", Email: "dup@x.com", Password: "h"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserRepositoryColumnUpdates(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	user := &model.User{Name: "A", Email: "a@x.com", Password: "old"}
	require.NoError(t, repo.Create(ctx, user))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new"))
	require.NoError(t, repo.SetActive(ctx, user.ID, false))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(at))
	assert.Equal(t, "new", got.Password)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, repo.SetActive(ctx, 12345, true), ErrUserNotFound)
}

func TestUserRepositoryPagination(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, repo.Create(ctx, &model.User{Name: email, Email: email, Password: "h"}))
	}

	page, total, err := repo.FindWithPagination(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "b@x.com", page[0].Email)
}
