package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/config"
	"github.com/yetuga/portal/internal/middleware"
	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/modules/auth/user"
	"github.com/yetuga/portal/internal/modules/dashboard"
	"github.com/yetuga/portal/internal/modules/health"
	"github.com/yetuga/portal/internal/modules/sessionapi"
	"github.com/yetuga/portal/internal/pkg/csrf"
	"github.com/yetuga/portal/internal/pkg/mail"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/role"
)

func policy(action string, p config.LimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{Action: action, MaxAttempts: p.MaxAttempts, Window: p.Window()}
}

func (a *App) registerRoutes() {
	r := a.router
	cfg := a.cfg

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	g := gate.New(a.sessions, a.activity, a.metrics)
	guardLog := a.logger.Named("gate")
	guard := func(req role.Requirement) gin.HandlerFunc {
		return middleware.RequireRole(g, a.sessions, req, guardLog)
	}

	var checks []health.Check
	if a.db != nil {
		checks = append(checks, health.Check{Name: "database", Ping: a.pingDatabase})
	}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: a.redis.Ping})
	}
	health.NewHandler(cfg.LogDir(), a.clock, checks...).RegisterRoutes(r, guard)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	var users user.Store
	if a.db != nil {
		users = user.NewGormStore(a.db)
	} else {
		users = user.NewMemoryStore()
	}
	deps := user.Deps{
		Sessions: a.sessions,
		Tokens:   csrf.New(a.sessions.Vault()),
		Limiter:  a.limiter,
		Policies: user.Policies{
			Login:         policy("login", cfg.RateLimit.Login),
			Register:      policy("register", cfg.RateLimit.Register),
			PasswordReset: policy("password_reset", cfg.RateLimit.PasswordReset),
		},
		Activity:  a.activity,
		Metrics:   a.metrics,
		PublicURL: cfg.PublicURL,
		Logger:    a.logger.Named("user"),
	}
	if cfg.Mail.Enable {
		deps.Mailer = mail.New(mail.BuildMailConfig(cfg))
	}
	svc := user.NewService(user.Options{Store: users, Clock: a.clock, Vault: a.sessions.Vault()})
	user.NewHandler(svc, deps).RegisterRoutes(r, user.Guards{
		CSRF:          middleware.RequireCSRF(a.activity, a.metrics),
		Authenticated: guard(role.Any),
	})

	sessionapi.NewHandler(sessionapi.Deps{
		Sessions: a.sessions,
		Limiter:  a.limiter,
		Policy:   policy("api_call", cfg.RateLimit.APICall),
		Activity: a.activity,
		Metrics:  a.metrics,
		Logger:   a.logger.Named("sessionapi"),
	}).RegisterRoutes(r)

	dashboard.NewHandler(a.sessions, a.activity, a.logger.Named("dashboard")).RegisterRoutes(r, guard)

	a.logger.Info("routes registered",
		zap.String("session_backend", cfg.Session.Backend),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Bool("database", a.db != nil),
		zap.Bool("mail", cfg.Mail.Enable),
		zap.Bool("lockout_alerts", a.alerts.Enabled()),
	)
}
