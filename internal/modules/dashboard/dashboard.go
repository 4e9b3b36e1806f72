// Package dashboard serves the role landing pages and the activity views
// built on the audit trail.
package dashboard

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/middleware"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/pagination"
	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

const (
	recentWindow       = 24 * time.Hour
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// ActivityReader is the read side of the activity log.
type ActivityReader interface {
	List(ctx context.Context, f activity.Filter, q pagination.Query) ([]activity.Record, response.Pagination, error)
	Recent(ctx context.Context, limit int) ([]activity.Record, error)
}

// Guard builds the role check placed in front of a route.
type Guard func(req role.Requirement) gin.HandlerFunc

type Handler struct {
	sessions *session.Manager
	activity ActivityReader
	logger   *zap.Logger
}

func NewHandler(sessions *session.Manager, reader ActivityReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, activity: reader, logger: logger}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, guard Guard) {
	r.GET(role.User.DashboardPath(), guard(role.Exactly(role.User)), h.dashboard)
	r.GET(role.Officer.DashboardPath(), guard(role.Exactly(role.Officer)), h.dashboard)
	r.GET(role.Admin.DashboardPath(), guard(role.Exactly(role.Admin)), h.dashboard)
	r.GET("/officer/recent-activity", guard(role.OneOf(role.Officer, role.Admin)), h.recentActivity)
	r.GET("/admin/activity", guard(role.Exactly(role.Admin)), h.activityLog)
}

func (h *Handler) dashboard(c *gin.Context) {
	snap := middleware.CurrentSnapshot(c)
	remaining := int64(snap.RemainingTime.Seconds())
	response.OK(c, gin.H{
		"user":         snap,
		"capabilities": role.Capabilities(snap.UserRole),
		"session": gin.H{
			"lifetime":       int64(snap.SessionLifetime.Seconds()),
			"remaining_time": remaining,
			"status":         session.StatusFor(snap.RemainingTime),
		},
	})
}

func (h *Handler) recentActivity(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit < 1 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := h.activity.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("recent activity query failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	since := h.sessions.Now().Add(-recentWindow)
	out := make([]activity.Record, 0, len(rows))
	for _, r := range rows {
		if r.CreatedAt.Before(since) {
			break
		}
		out = append(out, r)
	}
	response.OK(c, out)
}

func (h *Handler) activityLog(c *gin.Context) {
	f := activity.Filter{Action: c.Query("action")}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			response.BadRequest(c, "user_id must be a positive integer")
			return
		}
		f.UserID = id
	}

	rows, pag, err := h.activity.List(c.Request.Context(), f, pagination.FromContext(c))
	if err != nil {
		h.logger.Error("activity listing failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Paged(c, rows, pag)
}
