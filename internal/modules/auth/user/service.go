package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"

	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/tokenvault"
)

const (
	DefaultResetTTL   = time.Hour
	minUsernameLength = 3
	minPasswordLength = 6
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	validate        = validator.New()
)

type Options struct {
	Store Store
	Clock abtime.AbstractTime
	Vault *tokenvault.Vault
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	ResetTTL   time.Duration
}

// Service holds the account rules: credential checks, registration and
// password changes. Session and HTTP concerns live in Handler.
type Service struct {
	store    Store
	clock    abtime.AbstractTime
	vault    *tokenvault.Vault
	cost     int
	resetTTL time.Duration

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		clock:    opts.Clock,
		vault:    opts.Vault,
		cost:     opts.BcryptCost,
		resetTTL: opts.ResetTTL,
	}
	if s.clock == nil {
		s.clock = abtime.NewRealTime()
	}
	if s.vault == nil {
		s.vault = tokenvault.Default
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	return s
}

func (s *Service) ResetTTL() time.Duration { return s.resetTTL }

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// burnCompare spends a bcrypt comparison so unknown accounts take as long
// to reject as wrong passwords.
func (s *Service) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("yetuga-placeholder"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Authenticate checks a username or email and password pair. On a wrong
// password the matched account is returned alongside ErrInvalidCredentials
// so the failure can be attributed.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.UserModel, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalid(msgLoginFieldsRequired)
	}

	u, err := s.store.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		s.burnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return u, ErrInvalidCredentials
	}
	return u, nil
}

// MarkLoggedIn stamps the last login time.
func (s *Service) MarkLoggedIn(ctx context.Context, u *models.UserModel) error {
	now := s.clock.Now()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		return err
	}
	u.LastLogin = &now
	return nil
}

func validatePassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength))
	}
	if password != confirm {
		return invalid("Passwords do not match.")
	}
	return nil
}

func (dto *RegisterDTO) normalize() {
	dto.FirstName = strings.TrimSpace(dto.FirstName)
	dto.LastName = strings.TrimSpace(dto.LastName)
	dto.Username = strings.TrimSpace(dto.Username)
	dto.Email = strings.TrimSpace(dto.Email)
	dto.Phone = strings.TrimSpace(dto.Phone)
}

func (dto *RegisterDTO) validate() error {
	if dto.FirstName == "" || dto.LastName == "" || dto.Username == "" ||
		dto.Email == "" || dto.Phone == "" || dto.Password == "" {
		return invalid("All fields are required.")
	}
	if len(dto.Username) < minUsernameLength {
		return invalid(fmt.Sprintf("Username must be at least %d characters long.", minUsernameLength))
	}
	if !usernamePattern.MatchString(dto.Username) {
		return invalid("Username can only contain letters, numbers, and underscores.")
	}
	if validate.Var(dto.Email, "email") != nil {
		return invalid("Please enter a valid email address.")
	}
	return validatePassword(dto.Password, dto.ConfirmPassword)
}

// Register creates a regular user account. Accounts made here never get
// the officer or admin role.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*models.UserModel, error) {
	dto.normalize()
	if err := dto.validate(); err != nil {
		return nil, err
	}

	taken, err := s.store.UsernameExists(ctx, dto.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, invalid("Username already exists. Please choose a different one.")
	}
	taken, err = s.store.EmailExists(ctx, dto.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, invalid("Email already exists. Please use a different email or login.")
	}

	hash, err := s.hash(dto.Password)
	if err != nil {
		return nil, err
	}
	u := &models.UserModel{
		Username:     dto.Username,
		Email:        dto.Email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Phone:        dto.Phone,
		PasswordHash: hash,
		Role:         role.User.String(),
		IsActive:     true,
	}
	switch err := s.store.Create(ctx, u); {
	case errors.Is(err, ErrUsernameTaken):
		return nil, invalid("Username already exists. Please choose a different one.")
	case errors.Is(err, ErrEmailTaken):
		return nil, invalid("Email already exists. Please use a different email or login.")
	case err != nil:
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// RequestReset issues a reset token for the active account owning email.
// It returns a nil user and empty token when there is none; callers must
// answer identically in both cases.
func (s *Service) RequestReset(ctx context.Context, email string) (*models.UserModel, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, "", invalid("Please enter your email address.")
	}
	if validate.Var(email, "email") != nil {
		return nil, "", invalid("Please enter a valid email address.")
	}

	u, err := s.store.FindActiveByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	token, err := s.vault.Generate()
	if err != nil {
		return nil, "", err
	}
	expires := s.clock.Now().Add(s.resetTTL)
	if err := s.store.UpsertReset(ctx, u.ID, tokenvault.Hash(token), expires); err != nil {
		return nil, "", fmt.Errorf("store reset: %w", err)
	}
	return u, token, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) (*models.UserModel, error) {
	token := strings.TrimSpace(dto.Token)
	if len(token) != tokenvault.TokenLength {
		return nil, ErrInvalidResetToken
	}
	if err := validatePassword(dto.Password, dto.ConfirmPassword); err != nil {
		return nil, err
	}

	reset, err := s.store.FindReset(ctx, tokenvault.Hash(token))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("find reset: %w", err)
	}
	if !tokenvault.Compare(tokenvault.Hash(token), reset.TokenHash) {
		return nil, ErrInvalidResetToken
	}
	if !s.clock.Now().Before(reset.ExpiresAt) {
		_ = s.store.DeleteReset(ctx, reset.UserID)
		return nil, ErrInvalidResetToken
	}

	u, err := s.store.FindByID(ctx, reset.UserID)
	if errors.Is(err, ErrNotFound) || (err == nil && !u.IsActive) {
		_ = s.store.DeleteReset(ctx, reset.UserID)
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hash(dto.Password)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if err := s.store.DeleteReset(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("delete reset: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password of a signed in user.
func (s *Service) ChangePassword(ctx context.Context, userID int64, dto ChangePasswordDTO) error {
	if dto.CurrentPassword == "" {
		return invalid("Please enter your current password.")
	}
	if err := validatePassword(dto.NewPassword, dto.ConfirmPassword); err != nil {
		return err
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.CurrentPassword)) != nil {
		return errWrongPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.NewPassword)) == nil {
		return errPasswordSameAsOld
	}

	hash, err := s.hash(dto.NewPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}
