package user

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/middleware"
	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/csrf"
	"github.com/yetuga/portal/internal/pkg/mail"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

// Policies are the limiter thresholds for the unauthenticated forms.
type Policies struct {
	Login         ratelimit.Policy
	Register      ratelimit.Policy
	PasswordReset ratelimit.Policy
}

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to string, data mail.PasswordResetData) error
}

type Deps struct {
	Sessions *session.Manager
	Tokens   *csrf.Tokens
	Limiter  *ratelimit.Limiter
	Policies Policies
	Activity activity.Logger
	Metrics  *metrics.Metrics
	// Mailer may be nil; reset links then only reach the debug log.
	Mailer    Mailer
	PublicURL string
	Logger    *zap.Logger
}

type Handler struct {
	svc  *Service
	deps Deps
}

func NewHandler(svc *Service, deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{svc: svc, deps: deps}
}

// Guards are the route middlewares the handler relies on.
type Guards struct {
	CSRF          gin.HandlerFunc
	Authenticated gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(r gin.IRouter, g Guards) {
	r.GET("/csrf-token", h.csrfToken)
	r.GET("/login", h.loginPage)
	r.POST("/login", g.CSRF, h.login)
	r.POST("/register", g.CSRF, h.register)
	r.POST("/forgot-password", g.CSRF, h.forgotPassword)
	r.POST("/reset-password", g.CSRF, h.resetPassword)
	r.GET("/logout", h.logout)
	r.POST("/logout", h.logout)
	r.POST("/user/profile/password", g.Authenticated, g.CSRF, h.changePassword)
}

func (h *Handler) csrfToken(c *gin.Context) {
	token, err := h.deps.Tokens.Token(middleware.CurrentSession(c))
	if err != nil {
		h.deps.Logger.Error("csrf token generation failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"csrf_token": token})
}

func (h *Handler) sendToDashboard(c *gin.Context, r role.Role, extra gin.H) {
	dest := r.DashboardPath()
	if !middleware.WantsJSON(c) {
		c.Redirect(http.StatusFound, dest)
		return
	}
	body := gin.H{"ok": 1, "redirect": dest}
	for k, v := range extra {
		body[k] = v
	}
	response.OK(c, body)
}

// limited runs the limiter for policy and answers 429 when it refuses.
func (h *Handler) limited(c *gin.Context, policy ratelimit.Policy, identity string) (ratelimit.Result, bool) {
	res := h.deps.Limiter.CheckPolicy(c.Request.Context(), policy, identity)
	h.deps.Metrics.ObserveRateLimit(policy.Action, res.Allowed)
	if res.Allowed {
		return res, false
	}
	h.deps.Activity.Log(c.Request.Context(), activity.Entry{
		Action:  activity.ActionRateLimited,
		Details: "Rate limit exceeded for " + policy.Action,
	})
	response.TooManyRequests(c, res.Message, res.RemainingBlockSeconds())
	return res, true
}

func (h *Handler) loginPage(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if h.deps.Sessions.IsValid(s) {
		h.sendToDashboard(c, s.Role, nil)
		return
	}

	token, err := h.deps.Tokens.Token(s)
	if err != nil {
		h.deps.Logger.Error("csrf token generation failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	info := h.deps.Limiter.InfoPolicy(c.Request.Context(), h.deps.Policies.Login, ratelimit.Identity(c.ClientIP()))
	response.OK(c, gin.H{
		"csrf_token": token,
		"error":      c.Query("error"),
		"message":    c.Query("message"),
		"rate_limit": info,
	})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	identity := ratelimit.Identity(c.ClientIP())

	if _, refused := h.limited(c, h.deps.Policies.Login, identity); refused {
		h.deps.Metrics.ObserveLogin("rate_limited")
		return
	}

	u, err := h.svc.Authenticate(ctx, dto.Identifier, dto.Password)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(c, verr.Message)
		case errors.Is(err, ErrInvalidCredentials):
			var userID int64
			if u != nil {
				userID = u.ID
			}
			h.deps.Activity.Log(ctx, activity.Entry{
				UserID:  userID,
				Action:  activity.ActionLoginFailed,
				Details: "Failed login attempt",
			})
			h.deps.Metrics.ObserveLogin("failed")
			response.Fail(c, http.StatusUnauthorized, "invalid_credentials", msgInvalidCredentials)
		default:
			h.deps.Logger.Error("login lookup failed", zap.Error(err))
			response.InternalError(c)
		}
		return
	}

	s := middleware.CurrentSession(c)
	if err := h.deps.Sessions.Authenticate(ctx, s, principalOf(u)); err != nil {
		h.deps.Logger.Error("session authenticate failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if _, err := h.deps.Tokens.Regenerate(s); err != nil {
		h.deps.Logger.Error("csrf token generation failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if err := h.svc.MarkLoggedIn(ctx, u); err != nil {
		h.deps.Logger.Warn("could not update last_login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	h.deps.Limiter.RecordSuccess(ctx, h.deps.Policies.Login.Action, identity)
	h.deps.Activity.Log(ctx, activity.Entry{
		UserID:  u.ID,
		Action:  activity.ActionLogin,
		Details: "User logged in successfully",
	})
	h.deps.Metrics.ObserveLogin("success")

	h.sendToDashboard(c, role.Role(u.Role), gin.H{"user": toResponse(u)})
}

func principalOf(u *models.UserModel) session.Principal {
	name := u.FullName()
	if name == "" {
		name = u.Username
	}
	return session.Principal{
		UserID:   u.ID,
		Role:     role.Role(u.Role),
		Name:     name,
		Email:    u.Email,
		Username: u.Username,
	}
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	identity := ratelimit.Identity(c.ClientIP())

	if _, refused := h.limited(c, h.deps.Policies.Register, identity); refused {
		return
	}

	u, err := h.svc.Register(ctx, dto)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(c, verr.Message)
			return
		}
		h.deps.Logger.Error("registration failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	h.deps.Limiter.RecordSuccess(ctx, h.deps.Policies.Register.Action, identity)
	h.deps.Activity.Log(ctx, activity.Entry{
		UserID:  u.ID,
		Action:  activity.ActionRegister,
		Details: "User registered via login page",
	})
	response.Created(c, gin.H{"message": msgRegistered, "user": toResponse(u)})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var dto ForgotPasswordDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	if _, refused := h.limited(c, h.deps.Policies.PasswordReset, ratelimit.Identity(c.ClientIP())); refused {
		return
	}

	u, token, err := h.svc.RequestReset(ctx, dto.Email)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(c, verr.Message)
			return
		}
		h.deps.Logger.Error("password reset request failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if u != nil {
		h.deps.Activity.Log(ctx, activity.Entry{
			UserID:  u.ID,
			Action:  activity.ActionPasswordResetRequested,
			Details: "Password reset requested",
		})
		h.deliverReset(ctx, u, token)
	}
	response.OK(c, gin.H{"message": msgResetRequested})
}

func (h *Handler) deliverReset(ctx context.Context, u *models.UserModel, token string) {
	link := h.deps.PublicURL + "/reset-password?" + url.Values{"token": {token}}.Encode()
	if h.deps.Mailer == nil {
		h.deps.Logger.Debug("password reset link", zap.Int64("user_id", u.ID), zap.String("url", link))
		return
	}
	err := h.deps.Mailer.SendPasswordReset(ctx, u.Email, mail.PasswordResetData{
		Name:     u.FullName(),
		ResetURL: link,
		ValidFor: h.svc.ResetTTL(),
	})
	if err != nil {
		h.deps.Logger.Warn("password reset mail failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	u, err := h.svc.ResetPassword(ctx, dto)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(c, verr.Message)
		case errors.Is(err, ErrInvalidResetToken):
			response.Fail(c, http.StatusBadRequest, "invalid_token", msgInvalidResetToken)
		default:
			h.deps.Logger.Error("password reset failed", zap.Error(err))
			response.InternalError(c)
		}
		return
	}

	h.deps.Activity.Log(ctx, activity.Entry{
		UserID:  u.ID,
		Action:  activity.ActionPasswordReset,
		Details: "Password reset via emailed link",
	})
	response.OK(c, gin.H{"message": msgPasswordReset})
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()
	s := middleware.CurrentSession(c)
	if s != nil && s.Authenticated() {
		h.deps.Activity.Log(ctx, activity.Entry{
			UserID:  s.UserID,
			Action:  activity.ActionLogout,
			Details: "User logged out",
		})
	}
	if err := h.deps.Sessions.Destroy(ctx, c.Writer, s); err != nil {
		h.deps.Logger.Warn("session destroy failed", zap.Error(err))
	}
	h.deps.Metrics.ObserveLogout()

	message := ""
	switch reason := c.Query("reason"); reason {
	case gate.ReasonSessionExpired, gate.ReasonUnauthorized:
		message = reason
	}
	response.RedirectWith(c, middleware.LoginPath, "message", message)
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	s := middleware.CurrentSession(c)

	if err := h.svc.ChangePassword(ctx, s.UserID, dto); err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(c, verr.Message)
		case errors.Is(err, errWrongPassword):
			response.BadRequest(c, msgWrongPassword)
		case errors.Is(err, errPasswordSameAsOld):
			response.UnprocessableEntity(c, msgPasswordSameAsOld)
		default:
			h.deps.Logger.Error("password change failed", zap.Int64("user_id", s.UserID), zap.Error(err))
			response.InternalError(c)
		}
		return
	}

	if err := h.deps.Sessions.Rotate(ctx, s); err != nil {
		h.deps.Logger.Warn("session rotation after password change failed", zap.Error(err))
	}
	token, err := h.deps.Tokens.Regenerate(s)
	if err != nil {
		h.deps.Logger.Error("csrf token generation failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	h.deps.Activity.Log(ctx, activity.Entry{
		UserID:  s.UserID,
		Action:  activity.ActionPasswordChanged,
		Details: "Password changed",
	})
	response.OK(c, gin.H{"message": msgPasswordChanged, "csrf_token": token})
}
