package models

import (
	"strings"
	"time"
)

// UserModel is a portal account. IDs are integers because sessions and the
// activity log carry them as such.
type UserModel struct {
	ID           int64      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Username     string     `json:"username"   gorm:"uniqueIndex;size:64;not null"`
	Email        string     `json:"email"      gorm:"uniqueIndex;size:191;not null"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name"  gorm:"size:100"`
	Phone        string     `json:"phone"      gorm:"size:32"`
	PasswordHash string     `json:"-"          gorm:"column:password_hash;not null"`
	Role         string     `json:"role"       gorm:"size:16;index;not null;default:'user'"`
	IsActive     bool       `json:"is_active"  gorm:"not null;default:true"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created"`
	UpdatedAt    time.Time  `json:"modified"`
}

func (UserModel) TableName() string { return "users" }

// FullName joins first and last name the way dashboards display it.
func (u UserModel) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
