package service

import (
	"context"
	"fmt"
	"testing"

	"doubtiq-go/internal/model"
	"doubtiq-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, repo repository.UserRepository, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u := &model.User{Name: fmt.Sprintf("user%d", i), Email: fmt.Sprintf("u%d@x.com", i), Password: "x", Role: model.RoleUser, IsActive: true}
		require.NoError(t, repo.Create(context.Background(), u))
	}
}

func TestListUsersPaging(t *testing.T) {
	users := repository.NewUserRepository(newTestDB(t))
	seedUsers(t, users, 5)
	svc := NewAdminService(users)

	page, err := svc.ListUsers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Number)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "user3", page.Content[0].Name)

	page, err = svc.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 20, page.Size)
	assert.Len(t, page.Content, 5)
}

func TestSetUserActive(t *testing.T) {
	users := repository.NewUserRepository(newTestDB(t))
	seedUsers(t, users, 1)
	svc := NewAdminService(users)
	ctx := context.Background()

	detail, err := svc.SetUserActive(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, detail.IsActive)

	detail, err = svc.SetUserActive(ctx, 1, false)
	require.NoError(t, err, "repeating the same state is not an error")
	assert.False(t, detail.IsActive)

	_, err = svc.SetUserActive(ctx, 42, true)
	assert.ErrorIs(t, err, ErrNotFound)
}
