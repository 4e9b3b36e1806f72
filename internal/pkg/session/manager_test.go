package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/yetuga/portal/internal/pkg/kv"
	"github.com/yetuga/portal/internal/pkg/role"
)

func newManager(t *testing.T) (*Manager, *abtime.ManualTime, *kv.MemoryStore) {
	t.Helper()
	clock := abtime.NewManual()
	store := kv.NewMemoryStore(clock)
	m := NewManager(Options{Store: store, Clock: clock})
	return m, clock, store
}

var officer = Principal{UserID: 42, Role: role.Officer, Name: "Ada Obi", Email: "ada@example.com", Username: "ada"}

func signedIn(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.New()
	require.NoError(t, err)
	require.NoError(t, m.Authenticate(context.Background(), s, officer))
	return s
}

func TestIsValidSlidingBoundary(t *testing.T) {
	m, clock, _ := newManager(t)
	s := signedIn(t, m)

	clock.Advance(1800 * time.Second)
	assert.True(t, m.IsValid(s), "exactly the lifetime is still valid")

	clock.Advance(time.Second)
	assert.False(t, m.IsValid(s), "1801 seconds idle is expired")
}

func TestIsValidScenario(t *testing.T) {
	m, clock, _ := newManager(t)
	s := &Session{
		UserID:       1,
		Role:         role.User,
		LoginTime:    clock.Now().Add(-2 * time.Hour),
		LastActivity: clock.Now().Add(-1801 * time.Second),
	}
	assert.False(t, m.IsValid(s))

	s.LastActivity = clock.Now().Add(-1799 * time.Second)
	assert.True(t, m.IsValid(s))
}

func TestIsValidRequiresPrincipalAndTimestamps(t *testing.T) {
	m, clock, _ := newManager(t)
	now := clock.Now()
	tests := []struct {
		name string
		s    *Session
	}{
		{"nil", nil},
		{"anonymous", &Session{LoginTime: now, LastActivity: now}},
		{"no login time", &Session{UserID: 1, LastActivity: now}},
		{"no last activity", &Session{UserID: 1, LoginTime: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, m.IsValid(tt.s))
		})
	}
}

func TestTouchIsMonotonic(t *testing.T) {
	m, clock, _ := newManager(t)
	s := signedIn(t, m)

	clock.Advance(time.Minute)
	m.Touch(s)
	assert.Equal(t, clock.Now(), s.LastActivity)

	future := clock.Now().Add(time.Hour)
	s.LastActivity = future
	m.Touch(s)
	assert.Equal(t, future, s.LastActivity)
}

func TestAuthenticateRotatesIdentifier(t *testing.T) {
	m, _, store := newManager(t)
	ctx := context.Background()
	s, err := m.New()
	require.NoError(t, err)
	s.CSRFToken = "pre-login"
	s.MarkDirty()
	require.NoError(t, m.Save(ctx, httptest.NewRecorder(), s))
	before := s.ID()

	require.NoError(t, m.Authenticate(ctx, s, officer))
	assert.NotEqual(t, before, s.ID())
	assert.Empty(t, s.CSRFToken)
	assert.Equal(t, int64(42), s.UserID)
	assert.Equal(t, role.Officer, s.Role)
	assert.Equal(t, s.LoginTime, s.LastActivity)

	_, err = store.Get(ctx, keyPrefix+before)
	assert.True(t, errors.Is(err, kv.ErrNotFound))
}

func TestRotateIfDuePreservesAttributes(t *testing.T) {
	m, clock, store := newManager(t)
	ctx := context.Background()
	s := signedIn(t, m)
	require.NoError(t, m.Save(ctx, httptest.NewRecorder(), s))
	original := *s
	oldID := s.ID()

	clock.Advance(300 * time.Second)
	rotated, err := m.RotateIfDue(ctx, s)
	require.NoError(t, err)
	assert.False(t, rotated, "exactly the interval does not rotate")

	clock.Advance(time.Second)
	rotated, err = m.RotateIfDue(ctx, s)
	require.NoError(t, err)
	require.True(t, rotated)

	assert.NotEqual(t, oldID, s.ID())
	assert.Equal(t, clock.Now(), s.LastRegeneration)
	assert.Equal(t, original.UserID, s.UserID)
	assert.Equal(t, original.Role, s.Role)
	assert.Equal(t, original.LoginTime, s.LoginTime)
	assert.Equal(t, original.LastActivity, s.LastActivity)
	assert.True(t, m.IsValid(s))

	_, err = store.Get(ctx, keyPrefix+oldID)
	assert.True(t, errors.Is(err, kv.ErrNotFound))

	w := httptest.NewRecorder()
	require.NoError(t, m.Save(ctx, w, s))
	loaded, err := m.Load(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.UserID, loaded.UserID)
	assert.Contains(t, w.Header().Get("Set-Cookie"), s.ID())
}

func TestStartRoundTripThroughCookie(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	s := signedIn(t, m)

	w := httptest.NewRecorder()
	require.NoError(t, m.Save(ctx, w, s))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	r := httptest.NewRequest(http.MethodGet, "/user/dashboard", nil)
	r.AddCookie(cookies[0])
	got, err := m.Start(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, s.Email, got.Email)
	assert.True(t, m.IsValid(got))
}

func TestStartIgnoresUnknownAndMalformedIDs(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	for _, value := range []string{"short", "../../../etc/passwd", strings.Repeat("z", 64)} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: value})
		s, err := m.Start(ctx, r)
		require.NoError(t, err)
		assert.False(t, s.Authenticated())
		assert.NotEqual(t, value, s.ID())
	}

	unknown := strings.Repeat("ab", 32)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: unknown})
	s, err := m.Start(ctx, r)
	require.NoError(t, err)
	assert.NotEqual(t, unknown, s.ID(), "unknown identifiers are never adopted")
}

type unreadableStore struct{ kv.MemoryStore }

func (*unreadableStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestStartFailsClosed(t *testing.T) {
	m := NewManager(Options{Store: &unreadableStore{}})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: strings.Repeat("cd", 32)})

	s, err := m.Start(context.Background(), r)
	assert.Error(t, err)
	require.NotNil(t, s)
	assert.False(t, s.Authenticated())
	assert.False(t, m.IsValid(s))
}

func TestDestroyIsIdempotent(t *testing.T) {
	m, _, store := newManager(t)
	ctx := context.Background()
	s := signedIn(t, m)
	require.NoError(t, m.Save(ctx, httptest.NewRecorder(), s))
	id := s.ID()

	w := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, w, s))
	assert.False(t, s.Authenticated())
	assert.False(t, m.IsValid(s))
	assert.True(t, s.Destroyed())
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")

	_, err := store.Get(ctx, keyPrefix+id)
	assert.True(t, errors.Is(err, kv.ErrNotFound))

	assert.NoError(t, m.Destroy(ctx, httptest.NewRecorder(), s))
	assert.NoError(t, m.Destroy(ctx, httptest.NewRecorder(), nil))

	// a destroyed session is never written back
	w = httptest.NewRecorder()
	s.MarkDirty()
	require.NoError(t, m.Save(ctx, w, s))
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}

func TestSaveSkipsUnchangedSessions(t *testing.T) {
	m, _, store := newManager(t)
	s, err := m.New()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.Save(context.Background(), w, s))
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.Equal(t, 0, store.Len())
}

func TestRefresh(t *testing.T) {
	m, clock, _ := newManager(t)
	s := signedIn(t, m)

	clock.Advance(1000 * time.Second)
	assert.Equal(t, 800*time.Second, m.Remaining(s))
	require.True(t, m.Refresh(s))
	assert.Equal(t, 1800*time.Second, m.Remaining(s))

	clock.Advance(1801 * time.Second)
	assert.False(t, m.Refresh(s))
	assert.Equal(t, time.Duration(0), m.Remaining(s))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      Status
	}{
		{1800 * time.Second, StatusActive},
		{601 * time.Second, StatusActive},
		{600 * time.Second, StatusWarning},
		{301 * time.Second, StatusWarning},
		{300 * time.Second, StatusCritical},
		{0, StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.remaining.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.remaining))
		})
	}
}
