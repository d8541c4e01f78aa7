package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Booking is a suite reservation paid through the gateway.
type Booking struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	SuiteType          string          `gorm:"type:varchar(64)" json:"suite_type"`
	Specialty          string          `gorm:"type:varchar(128)" json:"specialty,omitempty"`
	BookingDate        time.Time       `gorm:"not null;index" json:"booking_date"`
	TimeSlot           string          `gorm:"type:varchar(16)" json:"time_slot"`
	Status             string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus      string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	TotalAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	PaymentCompletedAt *time.Time      `json:"payment_completed_at,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
