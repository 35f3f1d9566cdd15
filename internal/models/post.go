package models

import "time"

type Post struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrgID     int64     `gorm:"index" json:"org_id"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Published bool      `gorm:"default:false" json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author   *User     `gorm:"foreignKey:UserID" json:"author,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

// CrudModelName opts the type in to generic CRUD exposure.
func (Post) CrudModelName() string { return "models.Post" }
