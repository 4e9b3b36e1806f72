package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/csrf"
	"github.com/yetuga/portal/internal/pkg/metrics"
)

// RequireCSRF rejects state changing requests whose token does not match the
// session's. Safe methods pass untouched.
func RequireCSRF(log activity.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		s := CurrentSession(c)
		candidate := c.PostForm(csrf.FieldName)
		if candidate == "" {
			candidate = c.GetHeader(csrf.HeaderName)
		}
		if csrf.Verify(s, candidate) {
			c.Next()
			return
		}

		var userID int64
		if s != nil {
			userID = s.UserID
		}
		page := PageName(c)
		log.Log(c.Request.Context(), activity.Entry{
			UserID:  userID,
			Action:  activity.ActionCSRFFailed,
			Details: "CSRF validation failed on " + page,
		})
		m.ObserveCSRFFailure(page)
		Deny(c, &gate.Denial{Reason: gate.ReasonCSRFFailed, Page: page})
	}
}
