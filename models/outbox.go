package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxMessage is a domain event written in the same transaction as the
// state change it describes and relayed to the event bus afterwards.
type OutboxMessage struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AggregateType string         `gorm:"type:varchar(32);not null" json:"aggregate_type"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;not null" json:"aggregate_id"`
	EventType     string         `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}
