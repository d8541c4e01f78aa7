package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration statuses.
const (
	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationCancelled = "cancelled"
)

// Registration is a participant's seat in a workshop.
type Registration struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WorkshopID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"workshop_id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	RegistrationNumber *string    `gorm:"type:varchar(32);uniqueIndex" json:"registration_number,omitempty"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
