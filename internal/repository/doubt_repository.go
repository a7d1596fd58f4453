package repository

import (
	"context"

	"doubtiq-go/internal/model"

	"gorm.io/gorm"
)

// DoubtRepository persists single-shot question and answer records.
type DoubtRepository interface {
	Create(ctx context.Context, doubt *model.Doubt) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.Doubt, error)
}

type doubtRepository struct {
	db *gorm.DB
}

func NewDoubtRepository(db *gorm.DB) DoubtRepository {
	return &doubtRepository{db: db}
}

func (r *doubtRepository) Create(ctx context.Context, doubt *model.Doubt) error {
	return r.db.WithContext(ctx).Create(doubt).Error
}

// ListByUser returns the newest doubts first.
func (r *doubtRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Doubt, error) {
	doubts := []model.Doubt{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&doubts).Error
	return doubts, err
}
