// Package activity records security relevant events (sign-ins, denials,
// session expiry) and reads them back for officers and administrators.
package activity

import (
	"context"
	"time"
)

// Actions written by the portal.
const (
	ActionLogin                  = "login"
	ActionLoginFailed            = "login_failed"
	ActionLogout                 = "logout"
	ActionRegister               = "user_registered"
	ActionPageAccess             = "page_access"
	ActionSessionExpired         = "session_expired"
	ActionSessionRefreshed       = "session_refreshed"
	ActionUnauthorizedAccess     = "unauthorized_access"
	ActionCSRFFailed             = "csrf_failed"
	ActionRateLimited            = "rate_limited"
	ActionPasswordResetRequested = "password_reset_requested"
	ActionPasswordReset          = "password_reset"
	ActionPasswordChanged        = "password_changed"
)

// Entry is one event before it is stored. Zero IP and UserAgent are filled
// from the client attached to the context.
type Entry struct {
	UserID    int64
	Action    string
	Details   string
	IPAddress string
	UserAgent string
}

// Logger appends entries. Logging is best effort: implementations report
// their own failures and never fail the caller.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// Record is a stored entry as read back.
type Record struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	UserID int64
	Action string
}

func (f Filter) matches(r Record) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	return true
}

type clientKey struct{}

// Client identifies the requester behind an entry.
type Client struct {
	IP        string
	UserAgent string
}

// WithClient attaches the requester to ctx for later entries.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the requester attached by WithClient, if any.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

func withClientDefaults(ctx context.Context, e Entry) Entry {
	client := ClientFrom(ctx)
	if e.IPAddress == "" {
		e.IPAddress = client.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = client.UserAgent
	}
	return e
}
