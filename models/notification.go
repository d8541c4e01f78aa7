package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Email queue statuses.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"

	// MaxEmailRetries bounds how often a failed email is put back in the queue.
	MaxEmailRetries = 3
)

// Notification types.
const (
	NotificationPaymentConfirmed   = "payment_confirmed"
	NotificationPaymentFailed      = "payment_failed"
	NotificationWorkshopLive       = "workshop_live"
	NotificationRegistrationPaid   = "registration_confirmed"
	NotificationPayoutReleased     = "payout_released"
	NotificationPayoutReleasedAdm  = "payout_released_admin"
	NotificationPayoutHeld         = "payout_hold"
	NotificationPayoutHoldLifted   = "payout_hold_lifted"
	NotificationBookingReminder    = "booking_reminder"
	NotificationSubscriptionExpiry = "subscription_expiry_warning"
)

// EmailQueueItem is a pending email consumed by a separate delivery worker.
type EmailQueueItem struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	To           string         `gorm:"column:to_address;type:varchar(255);not null" json:"to"`
	Subject      string         `gorm:"type:varchar(255);not null" json:"subject"`
	Template     string         `gorm:"type:varchar(64);not null" json:"template"`
	TemplateData datatypes.JSON `gorm:"type:jsonb" json:"template_data"`
	Status       string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RetryCount   int            `gorm:"not null;default:0" json:"retry_count"`
	LastError    string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
}

func (EmailQueueItem) TableName() string { return "email_queue" }

// Notification is an in-app message shown to a user.
type Notification struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Type          string     `gorm:"type:varchar(64);not null" json:"type"`
	Title         string     `gorm:"type:varchar(255);not null" json:"title"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	IsRead        bool       `gorm:"not null;default:false" json:"is_read"`
	RelatedID     *uuid.UUID `gorm:"type:uuid" json:"related_id,omitempty"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
