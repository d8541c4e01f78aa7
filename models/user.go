package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// User is the subset of the platform user record this service reads.
type User struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string    `gorm:"type:varchar(255);not null" json:"email"`
	FullName        string    `gorm:"type:varchar(255)" json:"full_name"`
	Role            string    `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	PushEndpointARN *string   `gorm:"type:varchar(512)" json:"-"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName falls back to a generic salutation when no name is stored.
func (u *User) DisplayName() string {
	if u.FullName == "" {
		return "Valued Customer"
	}
	return u.FullName
}
