package models

// UserRole is the join between users and roles. The underlying `user_roles`
// table uses a composite primary key and has no single `id` column.
type UserRole struct {
	UserID int64 `gorm:"primaryKey"`
	RoleID int64 `gorm:"primaryKey"`
	OrgID  int64 `gorm:"primaryKey"`
}
