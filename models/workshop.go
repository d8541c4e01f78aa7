package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Workshop permission states.
const (
	PermissionPendingPayment = "pending_payment"
	PermissionLive           = "live"
)

// Workshop is a paid event run by a creator. Participant payments accrue
// revenue that is released to the creator after the workshop ends.
type Workshop struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatorID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"creator_id"`
	Title               string          `gorm:"type:varchar(255);not null" json:"title"`
	StartTime           time.Time       `gorm:"not null" json:"start_time"`
	EndTime             time.Time       `gorm:"not null;index" json:"end_time"`
	Fee                 decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fee"`
	MaxParticipants     int             `gorm:"not null;default:0" json:"max_participants"`
	CurrentParticipants int             `gorm:"not null;default:0" json:"current_participants"`
	PaymentStatus       string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`

	IsCreationFeePaid bool   `gorm:"not null;default:false" json:"is_creation_fee_paid"`
	IsActive          bool   `gorm:"not null;default:false" json:"is_active"`
	PermissionStatus  string `gorm:"type:varchar(32);not null;default:'pending_payment'" json:"permission_status"`

	RevenueTrackingStartedAt *time.Time      `json:"revenue_tracking_started_at,omitempty"`
	RevenueReleased          bool            `gorm:"not null;default:false" json:"revenue_released"`
	PaymentHold              bool            `gorm:"not null;default:false" json:"payment_hold"`
	HoldReason               string          `gorm:"type:text" json:"hold_reason,omitempty"`
	TotalRevenue             decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_revenue"`
	TotalFees                decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_fees"`
	NetRevenue               decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"net_revenue"`
	PayoutID                 *uuid.UUID      `gorm:"type:uuid" json:"payout_id,omitempty"`
	RevenueReleasedAt        *time.Time      `json:"revenue_released_at,omitempty"`
	// RevenueCheckedAt is set when an automatic pass found no paid
	// registrations. Settling a registration clears it again.
	RevenueCheckedAt *time.Time `json:"revenue_checked_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasCapacity reports whether another participant can be counted.
// A zero MaxParticipants means the workshop is uncapped.
func (w *Workshop) HasCapacity() bool {
	return w.MaxParticipants == 0 || w.CurrentParticipants < w.MaxParticipants
}

// EligibleForAutomaticRelease mirrors the selection predicate used by the
// revenue release job.
func (w *Workshop) EligibleForAutomaticRelease(cutoff time.Time) bool {
	return !w.EndTime.After(cutoff) && !w.RevenueReleased && !w.PaymentHold && w.RevenueCheckedAt == nil
}
