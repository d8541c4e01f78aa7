package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is a suite package with a fixed end date.
type Subscription struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SuiteType      string    `gorm:"type:varchar(64)" json:"suite_type"`
	PackageType    string    `gorm:"type:varchar(64)" json:"package_type"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	EndDate        time.Time `gorm:"not null" json:"end_date"`
	RemainingHours int       `gorm:"not null;default:0" json:"remaining_hours"`
}
