// Package gate decides whether the session behind a request may see a page.
// Every decision is written to the activity log before it is returned.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

// Denial reasons. They double as the ?error= value on the login redirect.
const (
	ReasonSessionExpired = "session_expired"
	ReasonUnauthorized   = "unauthorized"
	ReasonCSRFFailed     = "csrf_failed"
)

// Denial is returned when a request must not reach its handler.
type Denial struct {
	Reason string
	Page   string
}

func (d *Denial) Error() string {
	if d.Page == "" {
		return "access denied: " + d.Reason
	}
	return fmt.Sprintf("access denied to %s: %s", d.Page, d.Reason)
}

// Snapshot is the view of an authorized session handed to the page.
type Snapshot struct {
	UserID          int64         `json:"user_id"`
	UserName        string        `json:"user_name"`
	UserRole        role.Role     `json:"user_role"`
	UserEmail       string        `json:"user_email"`
	Username        string        `json:"username"`
	LoginTime       time.Time     `json:"login_time"`
	LastActivity    time.Time     `json:"last_activity"`
	SessionLifetime time.Duration `json:"-"`
	RemainingTime   time.Duration `json:"-"`
}

type Gate struct {
	sessions *session.Manager
	log      activity.Logger
	metrics  *metrics.Metrics
}

func New(sessions *session.Manager, log activity.Logger, m *metrics.Metrics) *Gate {
	return &Gate{sessions: sessions, log: log, metrics: m}
}

// Authorize checks s against req for page. On success the session is
// touched and a snapshot returned; otherwise the error is a *Denial.
func (g *Gate) Authorize(ctx context.Context, s *session.Session, req role.Requirement, page string) (*Snapshot, error) {
	if !g.sessions.IsValid(s) {
		if s != nil && s.UserID != 0 {
			g.log.Log(ctx, activity.Entry{
				UserID:  s.UserID,
				Action:  activity.ActionSessionExpired,
				Details: "Session expired on " + page,
			})
		}
		g.metrics.ObserveGate(ReasonSessionExpired)
		return nil, &Denial{Reason: ReasonSessionExpired, Page: page}
	}

	if !req.Allows(s.Role) {
		g.log.Log(ctx, activity.Entry{
			UserID:  s.UserID,
			Action:  activity.ActionUnauthorizedAccess,
			Details: fmt.Sprintf("Attempted to access %s with role %s", page, s.Role),
		})
		g.metrics.ObserveGate(ReasonUnauthorized)
		return nil, &Denial{Reason: ReasonUnauthorized, Page: page}
	}

	g.log.Log(ctx, activity.Entry{
		UserID:  s.UserID,
		Action:  activity.ActionPageAccess,
		Details: "Accessed " + page,
	})
	g.sessions.Touch(s)
	g.metrics.ObserveGate("allowed")

	return g.Snapshot(s), nil
}

// Snapshot describes s without any checks or side effects.
func (g *Gate) Snapshot(s *session.Session) *Snapshot {
	return &Snapshot{
		UserID:          s.UserID,
		UserName:        s.Name,
		UserRole:        s.Role,
		UserEmail:       s.Email,
		Username:        s.Username,
		LoginTime:       s.LoginTime,
		LastActivity:    s.LastActivity,
		SessionLifetime: g.sessions.Lifetime(),
		RemainingTime:   g.sessions.Remaining(s),
	}
}
