package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payout statuses and release types.
const (
	PayoutStatusReleased   = "released"
	PayoutStatusSuperseded = "superseded"

	ReleaseTypeAutomatic = "automatic"
	ReleaseTypeManual    = "manual"

	ReleasedBySystem = "system"
)

// Payout records one release of net workshop revenue to its creator.
// Rows are never edited except to mark them superseded by a later manual release.
type Payout struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WorkshopID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"workshop_id"`
	CreatorID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"creator_id"`
	TotalRevenue      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_revenue"`
	TotalTransactions int             `gorm:"not null" json:"total_transactions"`
	TotalFees         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_fees"`
	NetAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net_amount"`
	Status            string          `gorm:"type:varchar(20);not null;default:'released'" json:"status"`
	ReleaseType       string          `gorm:"type:varchar(20);not null" json:"release_type"`
	ReleasedBy        string          `gorm:"type:varchar(64);not null" json:"released_by"`
	ReleasedAt        time.Time       `gorm:"not null;index" json:"released_at"`
	Notes             string          `gorm:"type:text" json:"notes,omitempty"`
	SupersededBy      *uuid.UUID      `gorm:"type:uuid" json:"superseded_by,omitempty"`
	SupersededAt      *time.Time      `json:"superseded_at,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
