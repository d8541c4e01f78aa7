package repository

import (
	"context"
	"settlement-service/models"

	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	ListActive(ctx context.Context) ([]models.Subscription, error)
}

type GormSubscriptionRepository struct {
	db *gorm.DB
}

func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

func (r *GormSubscriptionRepository) ListActive(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_active = ?", "active", true).
		Find(&subs).Error
	return subs, err
}
