package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/modules/auth/gate"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/csrf"
	"github.com/yetuga/portal/internal/pkg/kv"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	engine   *gin.Engine
	clock    *abtime.ManualTime
	store    *kv.MemoryStore
	sessions *session.Manager
	repo     *activity.MemoryRepository
	log      *activity.Recorder
	metrics  *metrics.Metrics
	gate     *gate.Gate
	tokens   *csrf.Tokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := abtime.NewManual()
	store := kv.NewMemoryStore(clock)
	sessions := session.NewManager(session.Options{Store: store, Clock: clock})
	repo := activity.NewMemoryRepository(0, clock)
	recorder := activity.NewRecorder(repo, nil)
	m := metrics.New()

	h := &harness{
		engine:   gin.New(),
		clock:    clock,
		store:    store,
		sessions: sessions,
		repo:     repo,
		log:      recorder,
		metrics:  m,
		gate:     gate.New(sessions, recorder, m),
		tokens:   csrf.New(nil),
	}
	h.engine.Use(Session(sessions, m, zap.NewNop()))
	return h
}

// seed stores a signed in session and returns its cookie.
func (h *harness) seed(t *testing.T, r role.Role) (*http.Cookie, *session.Session) {
	t.Helper()
	s, err := h.sessions.New()
	require.NoError(t, err)
	require.NoError(t, h.sessions.Authenticate(context.Background(), s, session.Principal{UserID: 3, Role: r, Name: "Hana Girma"}))
	_, err = h.tokens.Token(s)
	require.NoError(t, err)
	require.NoError(t, h.sessions.Save(context.Background(), httptest.NewRecorder(), s))
	return &http.Cookie{Name: h.sessions.CookieName(), Value: s.ID()}, s
}

func (h *harness) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionCookieWrittenBeforeBody(t *testing.T) {
	h := newHarness(t)
	h.engine.GET("/csrf-token", func(c *gin.Context) {
		token, err := h.tokens.Token(CurrentSession(c))
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"csrf_token": token})
	})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/csrf-token", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(rec, h.sessions.CookieName())
	require.NotNil(t, cookie, "anonymous session with a token must be persisted")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	stored, err := h.sessions.Load(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), stored.CSRFToken)
}

func TestSessionUntouchedAnonymousIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	assert.Nil(t, sessionCookie(rec, h.sessions.CookieName()))
	assert.Equal(t, 0, h.store.Len())
}

func TestSessionRotatesWhenDue(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.seed(t, role.User)
	h.engine.GET("/user/dashboard",
		RequireRole(h.gate, h.sessions, role.Exactly(role.User), zap.NewNop()),
		func(c *gin.Context) { c.JSON(http.StatusOK, CurrentSnapshot(c)) },
	)

	h.clock.Advance(301 * time.Second)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/user/dashboard", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := sessionCookie(rec, h.sessions.CookieName())
	require.NotNil(t, rotated)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	_, err := h.sessions.Load(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	s, err := h.sessions.Load(context.Background(), rotated.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.UserID)
}

func TestRequireRoleRedirectsPages(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.seed(t, role.Officer)
	h.engine.GET("/admin/dashboard",
		RequireRole(h.gate, h.sessions, role.Exactly(role.Admin), zap.NewNop()),
		func(c *gin.Context) { t.Fatal("handler must not run") },
	)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=unauthorized", rec.Header().Get("Location"))

	entries := h.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionUnauthorizedAccess, entries[0].Action)
	assert.Equal(t, "Attempted to access /admin/dashboard with role officer", entries[0].Details)
	assert.Equal(t, "192.0.2.1", entries[0].IPAddress)
}

func TestRequireRoleJSONForScripts(t *testing.T) {
	h := newHarness(t)
	h.engine.GET("/officer/recent-activity",
		RequireRole(h.gate, h.sessions, role.OneOf(role.Officer, role.Admin), zap.NewNop()),
		func(c *gin.Context) { t.Fatal("handler must not run") },
	)

	req := httptest.NewRequest(http.MethodGet, "/officer/recent-activity", nil)
	req.Header.Set("Accept", "application/json")
	rec := h.do(req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"session_expired"`)
}

func TestRequireRoleDestroysExpiredSession(t *testing.T) {
	h := newHarness(t)
	cookie, _ := h.seed(t, role.User)
	h.engine.GET("/user/dashboard",
		RequireRole(h.gate, h.sessions, role.Exactly(role.User), zap.NewNop()),
		func(c *gin.Context) { t.Fatal("handler must not run") },
	)

	h.clock.Advance(1801 * time.Second)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/user/dashboard", nil), cookie)
	assert.Equal(t, "/login?error=session_expired", rec.Header().Get("Location"))

	entries := h.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionSessionExpired, entries[0].Action)
	assert.Equal(t, 0, h.store.Len())

	expired := sessionCookie(rec, h.sessions.CookieName())
	require.NotNil(t, expired)
	assert.Less(t, expired.MaxAge, 0)
}

func TestRequireCSRFRejectsBeforeHandler(t *testing.T) {
	h := newHarness(t)
	cookie, s := h.seed(t, role.User)
	ran := false
	h.engine.POST("/user/profile/password", RequireCSRF(h.log, h.metrics), func(c *gin.Context) {
		ran = true
		c.Status(http.StatusNoContent)
	})

	form := url.Values{csrf.FieldName: {"not-the-token"}}
	req := httptest.NewRequest(http.MethodPost, "/user/profile/password", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := h.do(req, cookie)

	assert.False(t, ran)
	assert.Equal(t, "/login?error=csrf_failed", rec.Header().Get("Location"))
	entries := h.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionCSRFFailed, entries[0].Action)

	form.Set(csrf.FieldName, s.CSRFToken)
	req = httptest.NewRequest(http.MethodPost, "/user/profile/password", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = h.do(req, cookie)
	assert.True(t, ran)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireCSRFAcceptsHeader(t *testing.T) {
	h := newHarness(t)
	cookie, s := h.seed(t, role.User)
	h.engine.POST("/api/echo", RequireCSRF(h.log, h.metrics), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/api/echo", nil)
	req.Header.Set(csrf.HeaderName, s.CSRFToken)
	assert.Equal(t, http.StatusNoContent, h.do(req, cookie).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/echo", nil)
	rec := h.do(req, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"csrf_failed"`)
}

func TestRateLimitAnswers429(t *testing.T) {
	h := newHarness(t)
	limiter := ratelimit.New(kv.NewMemoryStore(h.clock), ratelimit.Options{Clock: h.clock})
	policy := ratelimit.Policy{Action: "api_call", MaxAttempts: 2, Window: 5 * time.Minute}
	h.engine.POST("/api_handler", RateLimit(limiter, policy, h.log, h.metrics), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, h.do(httptest.NewRequest(http.MethodPost, "/api_handler", nil), nil).Code)
	}
	rec := h.do(httptest.NewRequest(http.MethodPost, "/api_handler", nil), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining_block_time":900`)
	assert.Contains(t, rec.Body.String(), "Account locked for 15 minutes")

	entries := h.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionRateLimited, entries[0].Action)
}

func TestWantsJSON(t *testing.T) {
	cases := map[string]struct {
		path   string
		header [2]string
		want   bool
	}{
		"page":        {path: "/user/dashboard", want: false},
		"api prefix":  {path: "/api/routes", want: true},
		"api handler": {path: "/api_handler", want: true},
		"xhr":         {path: "/user/dashboard", header: [2]string{"X-Requested-With", "XMLHttpRequest"}, want: true},
		"accept json": {path: "/admin/activity", header: [2]string{"Accept", "application/json"}, want: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header[0] != "" {
				c.Request.Header.Set(tc.header[0], tc.header[1])
			}
			assert.Equal(t, tc.want, WantsJSON(c))
		})
	}
}
