package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

// LoginPath is where page denials are sent.
const LoginPath = "/login"

// RequireRole lets the request through when the gate authorizes the current
// session for req. The page name logged is the route pattern. Sessions found
// expired are destroyed.
func RequireRole(g *gate.Gate, mgr *session.Manager, req role.Requirement, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		page := PageName(c)

		snap, err := g.Authorize(c.Request.Context(), s, req, page)
		if err != nil {
			var denial *gate.Denial
			if !errors.As(err, &denial) {
				log.Error("authorization failed", zap.String("page", page), zap.Error(err))
				response.InternalError(c)
				return
			}
			if denial.Reason == gate.ReasonSessionExpired && s != nil && s.Authenticated() {
				if err := mgr.Destroy(c.Request.Context(), c.Writer, s); err != nil {
					log.Warn("expired session cleanup failed", zap.Error(err))
				}
			}
			log.Info("access denied",
				zap.String("page", page),
				zap.String("reason", denial.Reason),
				zap.String("ip", c.ClientIP()),
			)
			Deny(c, denial)
			return
		}

		c.Set(ContextKeySnapshot, snap)
		c.Next()
	}
}

// Deny ends the request for a denial: a redirect to the login page for page
// routes, a JSON error for API routes.
func Deny(c *gin.Context, d *gate.Denial) {
	if !WantsJSON(c) {
		response.RedirectWithReason(c, LoginPath, d.Reason)
		return
	}
	switch d.Reason {
	case gate.ReasonSessionExpired:
		response.Unauthorized(c, d.Reason)
	case gate.ReasonCSRFFailed:
		response.Fail(c, http.StatusForbidden, d.Reason, "Security validation failed. Please try again.")
	default:
		response.Forbidden(c, d.Reason)
	}
}

// WantsJSON reports whether the caller is script rather than a page load.
func WantsJSON(c *gin.Context) bool {
	path := c.Request.URL.Path
	if path == "/api" || strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/api_") {
		return true
	}
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.HasPrefix(c.GetHeader("Accept"), "application/json")
}

// PageName is the matched route pattern, falling back to the raw path.
func PageName(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
