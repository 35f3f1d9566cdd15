package models

import "time"

type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	OrgID       int64     `gorm:"index" json:"org_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:200;not null" json:"slug"`
	Description string    `json:"description"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
