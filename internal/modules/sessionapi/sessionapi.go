// Package sessionapi serves the endpoint polled by the in-page session timer.
// It answers in the timer's own {success, ...} shape rather than the
// portal's error envelope.
package sessionapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/middleware"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	"github.com/yetuga/portal/internal/pkg/session"
)

const Path = "/api_handler"

const (
	ActionSessionStatus  = "session_status"
	ActionRefreshSession = "refresh_session"
	ActionUserInfo       = "user_info"
)

type Deps struct {
	Sessions *session.Manager
	Limiter  *ratelimit.Limiter
	Policy   ratelimit.Policy
	Activity activity.Logger
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{deps: deps}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.Any(Path,
		h.requirePost,
		h.requireSession,
		middleware.RateLimit(h.deps.Limiter, h.deps.Policy, h.deps.Activity, h.deps.Metrics),
		h.dispatch,
	)
}

func fail(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "error": reason})
}

func (h *Handler) requirePost(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		fail(c, http.StatusMethodNotAllowed, "invalid_method", "Method not allowed. Use POST requests only.")
		return
	}
	c.Next()
}

func (h *Handler) requireSession(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if !h.deps.Sessions.IsValid(s) {
		var userID int64
		if s != nil {
			userID = s.UserID
		}
		if userID != 0 {
			h.deps.Activity.Log(c.Request.Context(), activity.Entry{
				UserID:  userID,
				Action:  activity.ActionSessionExpired,
				Details: "Session expired on " + Path,
			})
		}
		h.deps.Metrics.ObserveGate("session_expired")
		h.deps.Logger.Info("session api denied",
			zap.String("reason", "session_expired"),
			zap.Int64("user_id", userID),
			zap.String("ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Session expired or invalid",
			"status":  "expired",
			"error":   "unauthorized",
		})
		return
	}
	c.Next()
}

func (h *Handler) dispatch(c *gin.Context) {
	s := middleware.CurrentSession(c)
	switch c.PostForm("action") {
	case ActionSessionStatus:
		h.sessionStatus(c, s)
	case ActionRefreshSession:
		h.refreshSession(c.Request.Context(), c, s)
	case ActionUserInfo:
		h.userInfo(c, s)
	default:
		fail(c, http.StatusBadRequest, "invalid_action", "Invalid API action")
	}
	// every completed call clears the api_call counter, unknown actions included
	h.deps.Limiter.RecordSuccess(c.Request.Context(), h.deps.Policy.Action, ratelimit.Identity(c.ClientIP()))
}

func (h *Handler) sessionStatus(c *gin.Context, s *session.Session) {
	left := h.deps.Sessions.Remaining(s)
	remaining := int64(left.Seconds())
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"status":            session.StatusFor(left),
		"remaining_time":    remaining,
		"remaining_minutes": remaining / 60,
		"remaining_seconds": remaining % 60,
		"user_id":           s.UserID,
		"user_role":         s.Role,
		"user_name":         s.Name,
		"login_time":        s.LoginTime.Unix(),
		"last_activity":     s.LastActivity.Unix(),
	})
}

func (h *Handler) refreshSession(ctx context.Context, c *gin.Context, s *session.Session) {
	if !h.deps.Sessions.Refresh(s) {
		fail(c, http.StatusUnauthorized, "unauthorized", "Session expired or invalid")
		return
	}
	h.deps.Activity.Log(ctx, activity.Entry{
		UserID:  s.UserID,
		Action:  activity.ActionSessionRefreshed,
		Details: "Session extended due to user activity",
	})
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Session refreshed",
		"last_activity":  s.LastActivity.Unix(),
		"remaining_time": int64(h.deps.Sessions.Remaining(s).Seconds()),
	})
}

func (h *Handler) userInfo(c *gin.Context, s *session.Session) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":       s.UserID,
			"username": s.Username,
			"name":     s.Name,
			"email":    s.Email,
			"role":     s.Role,
		},
	})
}
