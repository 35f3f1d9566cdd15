package models

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	OrgID        int64      `gorm:"index" json:"org_id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string     `gorm:"size:200" json:"name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Status       UserStatus `gorm:"size:16;default:active" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Roles        []Role     `gorm:"many2many:user_roles;" json:"roles,omitempty"`
}

// CrudModelName opts the type in to generic CRUD exposure.
func (User) CrudModelName() string { return "models.User" }
