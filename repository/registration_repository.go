package repository

import (
	"context"
	"errors"
	"settlement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistrationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Update(ctx context.Context, r *models.Registration) error
	// AssignNumber stores a registration number from generate, drawing a new
	// one when the candidate is already taken. It must run inside a transaction.
	AssignNumber(ctx context.Context, id uuid.UUID, generate func() string) (string, error)
}

// ErrRegistrationNumberExhausted is returned when every generated candidate
// collided with an existing number.
var ErrRegistrationNumberExhausted = errors.New("no free registration number")

const (
	registrationNumberAttempts  = 5
	registrationNumberSavepoint = "registration_number"
)

type GormRegistrationRepository struct {
	db *gorm.DB
}

func NewGormRegistrationRepository(db *gorm.DB) *GormRegistrationRepository {
	return &GormRegistrationRepository{db: db}
}

func (r *GormRegistrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *GormRegistrationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *GormRegistrationRepository) Update(ctx context.Context, reg *models.Registration) error {
	return r.db.WithContext(ctx).Save(reg).Error
}

func (r *GormRegistrationRepository) AssignNumber(ctx context.Context, id uuid.UUID, generate func() string) (string, error) {
	for attempt := 0; attempt < registrationNumberAttempts; attempt++ {
		number := generate()
		if err := r.db.WithContext(ctx).SavePoint(registrationNumberSavepoint).Error; err != nil {
			return "", err
		}
		err := r.db.WithContext(ctx).
			Model(&models.Registration{}).
			Where("id = ?", id).
			UpdateColumn("registration_number", number).Error
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		// A failed statement aborts the transaction until rolled back to the savepoint.
		if err := r.db.WithContext(ctx).RollbackTo(registrationNumberSavepoint).Error; err != nil {
			return "", err
		}
	}
	return "", ErrRegistrationNumberExhausted
}
