package models

import "time"

// PasswordResetModel holds the single outstanding reset for a user. Only the
// SHA-256 of the emailed token is stored.
type PasswordResetModel struct {
	Base
	UserID    int64     `json:"user_id"    gorm:"uniqueIndex;not null"`
	TokenHash string    `json:"-"          gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

func (PasswordResetModel) TableName() string { return "password_resets" }
