package repository

import (
	"context"
	"settlement-service/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutFilter narrows a payout history query. Exactly one field is expected
// to be set by callers.
type PayoutFilter struct {
	WorkshopID *uuid.UUID
	CreatorID  *uuid.UUID
}

type PayoutRepository interface {
	Create(ctx context.Context, p *models.Payout) error
	// FindActiveByWorkshop returns the released (not superseded) payout of a workshop.
	FindActiveByWorkshop(ctx context.Context, workshopID uuid.UUID) (*models.Payout, error)
	MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID, at time.Time) error
	List(ctx context.Context, filter PayoutFilter, page, limit int) ([]models.Payout, int64, error)
}

type GormPayoutRepository struct {
	db *gorm.DB
}

func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

func (r *GormPayoutRepository) Create(ctx context.Context, p *models.Payout) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormPayoutRepository) FindActiveByWorkshop(ctx context.Context, workshopID uuid.UUID) (*models.Payout, error) {
	var p models.Payout
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND status = ?", workshopID, models.PayoutStatusReleased).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPayoutRepository) MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, models.PayoutStatusReleased).
		Updates(map[string]interface{}{
			"status":        models.PayoutStatusSuperseded,
			"superseded_by": supersededBy,
			"superseded_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormPayoutRepository) List(ctx context.Context, filter PayoutFilter, page, limit int) ([]models.Payout, int64, error) {
	var (
		payouts []models.Payout
		total   int64
	)

	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if filter.WorkshopID != nil {
		query = query.Where("workshop_id = ?", *filter.WorkshopID)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("released_at DESC").Offset(offset).Limit(limit).Find(&payouts).Error
	return payouts, total, err
}
