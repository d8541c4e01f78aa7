package repository

import (
	"context"
	"settlement-service/models"

	"gorm.io/gorm"
)

// AdminActionRepository appends to the payout control audit trail.
type AdminActionRepository interface {
	Create(ctx context.Context, a *models.AdminAction) error
}

type GormAdminActionRepository struct {
	db *gorm.DB
}

func NewGormAdminActionRepository(db *gorm.DB) *GormAdminActionRepository {
	return &GormAdminActionRepository{db: db}
}

func (r *GormAdminActionRepository) Create(ctx context.Context, a *models.AdminAction) error {
	return r.db.WithContext(ctx).Create(a).Error
}
