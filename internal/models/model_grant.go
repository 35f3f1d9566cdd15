package models

import "time"

// Principal kinds a grant may target.
const (
	PrincipalUser = "user"
	PrincipalRole = "role"
)

// ModelGrant is one permission rule: a principal (user or role) may perform
// an action on a model. Attribute narrows the rule to a single column;
// an empty Attribute is a model-level grant and "*" grants every column.
type ModelGrant struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	OrgID         int64     `gorm:"index;not null" json:"org_id"`
	ModelName     string    `gorm:"index;size:200;not null" json:"model_name"`
	Attribute     string    `gorm:"size:100" json:"attribute"`
	Action        string    `gorm:"size:16;not null" json:"action"`
	PrincipalType string    `gorm:"size:16;not null" json:"principal_type"`
	PrincipalID   int64     `gorm:"index;not null" json:"principal_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
