// Package session keeps the server side state behind the portal cookie:
// who is signed in, when they last did something, and the CSRF token.
//
// Expiry is evaluated lazily from the stored timestamps on every access;
// nothing sweeps old sessions. Store TTLs only reclaim space.
package session

import (
	"time"

	"github.com/yetuga/portal/internal/pkg/role"
)

// Session is the state for one browser. The zero value is anonymous.
type Session struct {
	UserID           int64     `json:"user_id,omitempty"`
	Role             role.Role `json:"user_role,omitempty"`
	Name             string    `json:"user_name,omitempty"`
	Email            string    `json:"user_email,omitempty"`
	Username         string    `json:"username,omitempty"`
	LoginTime        time.Time `json:"login_time"`
	LastActivity     time.Time `json:"last_activity"`
	LastRegeneration time.Time `json:"last_regeneration"`
	CSRFToken        string    `json:"csrf_token,omitempty"`

	id        string
	dirty     bool
	destroyed bool
}

// Principal is a verified account handed over after the password check.
type Principal struct {
	UserID   int64
	Role     role.Role
	Name     string
	Email    string
	Username string
}

// ID returns the current identifier. It changes on rotation.
func (s *Session) ID() string { return s.id }

// Authenticated reports whether a principal is attached. It says nothing
// about expiry; see Manager.IsValid.
func (s *Session) Authenticated() bool { return s.UserID != 0 }

// Destroyed reports whether Destroy ran on this value.
func (s *Session) Destroyed() bool { return s.destroyed }

// MarkDirty flags the session for persistence at the end of the request.
func (s *Session) MarkDirty() { s.dirty = true }

// Dirty reports whether Save has work to do.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) clear() {
	id := s.id
	*s = Session{id: id}
}

// Status buckets the remaining lifetime for the client side timer.
type Status string

const (
	StatusActive   Status = "active"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

const (
	warningThreshold  = 600 * time.Second
	criticalThreshold = 300 * time.Second
)

// StatusFor maps remaining lifetime onto a Status.
func StatusFor(remaining time.Duration) Status {
	switch {
	case remaining > warningThreshold:
		return StatusActive
	case remaining > criticalThreshold:
		return StatusWarning
	default:
		return StatusCritical
	}
}
