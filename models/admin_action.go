package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Admin action kinds.
const (
	AdminActionHold    = "hold"
	AdminActionUnhold  = "unhold"
	AdminActionRelease = "release"
)

// AdminAction is an append-only audit entry for payout control actions.
type AdminAction struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Action     string         `gorm:"type:varchar(20);not null" json:"action"`
	WorkshopID uuid.UUID      `gorm:"type:uuid;not null;index" json:"workshop_id"`
	AdminID    uuid.UUID      `gorm:"type:uuid;not null" json:"admin_id"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
