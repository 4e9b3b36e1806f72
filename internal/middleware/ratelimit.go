package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	"github.com/yetuga/portal/internal/pkg/response"
)

// RateLimit counts every request against policy for the client address and
// answers 429 once the limiter refuses. Handlers reset the count with
// Limiter.RecordSuccess.
func RateLimit(l *ratelimit.Limiter, policy ratelimit.Policy, log activity.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := l.CheckPolicy(c.Request.Context(), policy, ratelimit.Identity(c.ClientIP()))
		m.ObserveRateLimit(policy.Action, res.Allowed)
		if res.Allowed {
			c.Next()
			return
		}

		var userID int64
		if s := CurrentSession(c); s != nil {
			userID = s.UserID
		}
		log.Log(c.Request.Context(), activity.Entry{
			UserID:  userID,
			Action:  activity.ActionRateLimited,
			Details: "Rate limit exceeded for " + policy.Action,
		})
		response.TooManyRequests(c, res.Message, res.RemainingBlockSeconds())
	}
}
