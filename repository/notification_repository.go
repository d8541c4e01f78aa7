package repository

import (
	"context"
	"settlement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository writes notification intents: queued emails and
// in-app messages. Delivery happens elsewhere.
type NotificationRepository interface {
	EnqueueEmail(ctx context.Context, item *models.EmailQueueItem) error
	CreateInApp(ctx context.Context, n *models.Notification) error
	// ExistsInApp reports whether a notification of the given type was already
	// created for the user and related record. A nil daysRemaining matches any value.
	ExistsInApp(ctx context.Context, userID uuid.UUID, notificationType string, relatedID uuid.UUID, daysRemaining *int) (bool, error)
	// RequeueFailedEmails moves failed emails that still have retries left back to pending.
	RequeueFailedEmails(ctx context.Context, maxRetries int) (int64, error)
}

type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

func (r *GormNotificationRepository) EnqueueEmail(ctx context.Context, item *models.EmailQueueItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormNotificationRepository) CreateInApp(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *GormNotificationRepository) ExistsInApp(ctx context.Context, userID uuid.UUID, notificationType string, relatedID uuid.UUID, daysRemaining *int) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND related_id = ?", userID, notificationType, relatedID)
	if daysRemaining != nil {
		query = query.Where("days_remaining = ?", *daysRemaining)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormNotificationRepository) RequeueFailedEmails(ctx context.Context, maxRetries int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EmailQueueItem{}).
		Where("status = ? AND retry_count < ?", models.EmailStatusFailed, maxRetries).
		Update("status", models.EmailStatusPending)
	return result.RowsAffected, result.Error
}
