package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/session"
)

const (
	ContextKeySession  = "session"
	ContextKeySnapshot = "session_snapshot"
)

// sessionWriter persists the session right before the first byte of the
// response goes out, while the Set-Cookie header can still be added.
type sessionWriter struct {
	gin.ResponseWriter
	commit func()
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	return w.ResponseWriter.WriteString(s)
}

// Session loads the request's session once, rotates its identifier when due
// and saves it before the response is written. It also attaches the client
// address to the request context for activity entries.
func Session(mgr *session.Manager, m *metrics.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := activity.WithClient(c.Request.Context(), activity.Client{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		s, err := mgr.Start(ctx, c.Request)
		if err != nil {
			log.Warn("session load failed", zap.Error(err))
			if s == nil {
				response.InternalError(c)
				return
			}
		}

		rotated, err := mgr.RotateIfDue(ctx, s)
		if err != nil {
			log.Warn("session rotation failed", zap.Error(err))
		} else if rotated {
			m.ObserveRotation()
		}
		c.Set(ContextKeySession, s)

		w := &sessionWriter{ResponseWriter: c.Writer}
		w.commit = func() {
			if err := mgr.Save(ctx, w.ResponseWriter, s); err != nil {
				log.Warn("session save failed", zap.Error(err))
			}
		}
		c.Writer = w

		c.Next()
		w.commit()
	}
}

// CurrentSession returns the session attached by Session, or nil.
func CurrentSession(c *gin.Context) *session.Session {
	v, _ := c.Get(ContextKeySession)
	s, _ := v.(*session.Session)
	return s
}

// CurrentSnapshot returns the snapshot stored by RequireRole, or nil.
func CurrentSnapshot(c *gin.Context) *gate.Snapshot {
	v, _ := c.Get(ContextKeySnapshot)
	snap, _ := v.(*gate.Snapshot)
	return snap
}
