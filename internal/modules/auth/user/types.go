package user

import (
	"errors"
	"time"

	"github.com/yetuga/portal/internal/models"
)

// Form field names follow the portal's HTML forms; JSON bodies use the same keys.
type LoginDTO struct {
	Identifier string `form:"login_identifier" json:"login_identifier"`
	Password   string `form:"login_password"   json:"login_password"`
}

type RegisterDTO struct {
	FirstName       string `form:"reg_first_name"       json:"reg_first_name"`
	LastName        string `form:"reg_last_name"        json:"reg_last_name"`
	Username        string `form:"reg_username"         json:"reg_username"`
	Email           string `form:"reg_email"            json:"reg_email"`
	Phone           string `form:"reg_phone"            json:"reg_phone"`
	Password        string `form:"reg_password"         json:"reg_password"`
	ConfirmPassword string `form:"reg_confirm_password" json:"reg_confirm_password"`
}

type ForgotPasswordDTO struct {
	Email string `form:"email" json:"email"`
}

type ResetPasswordDTO struct {
	Token           string `form:"token"            json:"token"`
	Password        string `form:"password"         json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

type ChangePasswordDTO struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password"     json:"new_password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

type userResponse struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login"`
}

func toResponse(u *models.UserModel) *userResponse {
	return &userResponse{
		ID: u.ID, Username: u.Username, Name: u.FullName(),
		Email: u.Email, Phone: u.Phone, Role: u.Role, LastLogin: u.LastLogin,
	}
}

// ValidationError carries a message safe to show next to the form.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	errWrongPassword      = errors.New("wrong password")
	errPasswordSameAsOld  = errors.New("password same as old")
)

const (
	msgLoginFieldsRequired = "Please enter both username/email and password."
	msgInvalidCredentials  = "Invalid username/email or password."
	msgInvalidResetToken   = "This password reset link is invalid or has expired."
	msgWrongPassword       = "Current password is incorrect."
	msgPasswordSameAsOld   = "New password must be different from the current one."
	msgResetRequested      = "If an account with that email exists, we have sent a password reset link."
	msgRegistered          = "Registration successful! You can now login with your username or email."
	msgPasswordReset       = "Your password has been reset. You can now login."
	msgPasswordChanged     = "Password updated."
)
