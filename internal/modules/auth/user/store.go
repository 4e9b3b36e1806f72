package user

import (
	"context"
	"errors"
	"time"

	"github.com/yetuga/portal/internal/models"
)

var (
	ErrNotFound      = errors.New("user: not found")
	ErrUsernameTaken = errors.New("user: username taken")
	ErrEmailTaken    = errors.New("user: email taken")
)

// CredentialStore is the account table as the auth flows see it.
type CredentialStore interface {
	// FindByIdentifier matches an active account by username or email.
	FindByIdentifier(ctx context.Context, identifier string) (*models.UserModel, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.UserModel, error)
	FindByID(ctx context.Context, id int64) (*models.UserModel, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// Create inserts u and sets its ID. Unique violations surface as
	// ErrUsernameTaken or ErrEmailTaken.
	Create(ctx context.Context, u *models.UserModel) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// ResetStore keeps at most one outstanding password reset per account.
type ResetStore interface {
	UpsertReset(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	FindReset(ctx context.Context, tokenHash string) (*models.PasswordResetModel, error)
	DeleteReset(ctx context.Context, userID int64) error
}

// Store is both halves; the gorm and memory backends implement it.
type Store interface {
	CredentialStore
	ResetStore
}
