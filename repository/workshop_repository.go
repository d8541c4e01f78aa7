package repository

import (
	"context"
	"settlement-service/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkshopRepository defines data-access operations for workshops.
type WorkshopRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	Update(ctx context.Context, w *models.Workshop) error
	// ListDueForRelease returns workshops that ended at or before cutoff and
	// are neither released, on hold, nor already found to have no revenue.
	ListDueForRelease(ctx context.Context, cutoff time.Time, limit int) ([]models.Workshop, error)
}

type GormWorkshopRepository struct {
	db *gorm.DB
}

func NewGormWorkshopRepository(db *gorm.DB) *GormWorkshopRepository {
	return &GormWorkshopRepository{db: db}
}

func (r *GormWorkshopRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	var w models.Workshop
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWorkshopRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	var w models.Workshop
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&w, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWorkshopRepository) Update(ctx context.Context, w *models.Workshop) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *GormWorkshopRepository) ListDueForRelease(ctx context.Context, cutoff time.Time, limit int) ([]models.Workshop, error) {
	var workshops []models.Workshop
	err := r.db.WithContext(ctx).
		Where("end_time <= ? AND revenue_released = ? AND payment_hold = ? AND revenue_checked_at IS NULL", cutoff, false, false).
		Order("end_time ASC").
		Limit(limit).
		Find(&workshops).Error
	return workshops, err
}
