package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus constants.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// EntityType identifies the business entity a payment settles.
type EntityType string

const (
	EntityBooking      EntityType = "booking"
	EntityWorkshop     EntityType = "workshop"
	EntityRegistration EntityType = "registration"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityBooking, EntityWorkshop, EntityRegistration:
		return true
	}
	return false
}

// Payment is a payment intent created before the gateway callback arrives.
// Status moves only from pending to paid or from pending to failed.
type Payment struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityType     EntityType       `gorm:"type:varchar(32);not null" json:"entity_type"`
	EntityID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"entity_id"`
	WorkshopID     *uuid.UUID       `gorm:"type:uuid;index" json:"workshop_id,omitempty"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status         string           `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	GatewayTxnID   *string          `gorm:"type:varchar(128);uniqueIndex" json:"gateway_txn_id,omitempty"`
	ReceivedAmount *decimal.Decimal `gorm:"type:numeric(12,2)" json:"received_amount,omitempty"`
	GatewayPayload datatypes.JSON   `gorm:"type:jsonb" json:"-"`
	FailureReason  string           `gorm:"type:varchar(64)" json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment can no longer change status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFailed
}
