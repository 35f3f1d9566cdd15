package models

import "time"

type Comment struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	OrgID      int64     `gorm:"index" json:"org_id"`
	PostID     int64     `gorm:"index;not null" json:"post_id"`
	UserID     int64     `gorm:"index" json:"user_id"`
	AuthorName string    `gorm:"size:200" json:"author_name"`
	Body       string    `gorm:"type:text" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Post *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
}

// CrudModelName opts the type in to generic CRUD exposure.
func (Comment) CrudModelName() string { return "models.Comment" }
