package repository

import (
	"context"
	"testing"
	"time"

	"doubtiq-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubtRepositoryListNewestFirst(t *testing.T) {
	repo := NewDoubtRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &model.Doubt{UserID: 1, Question: "q1", Answer: "a1", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &model.Doubt{UserID: 1, Question: "q2", Answer: "a2", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &model.Doubt{UserID: 2, Question: "other", Answer: "a", CreatedAt: base}))

	doubts, err := repo.ListByUser(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, doubts, 2)
	assert.Equal(t, "q2", doubts[0].Question)
	assert.Equal(t, "q1", doubts[1].Question)
}
