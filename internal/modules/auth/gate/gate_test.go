package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/kv"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/role"
	"github.com/yetuga/portal/internal/pkg/session"
)

type fixture struct {
	gate     *Gate
	sessions *session.Manager
	clock    *abtime.ManualTime
	repo     *activity.MemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := abtime.NewManual()
	sessions := session.NewManager(session.Options{Store: kv.NewMemoryStore(clock), Clock: clock})
	repo := activity.NewMemoryRepository(0, clock)
	return &fixture{
		gate:     New(sessions, activity.NewRecorder(repo, nil), metrics.New()),
		sessions: sessions,
		clock:    clock,
		repo:     repo,
	}
}

func (f *fixture) signIn(t *testing.T, r role.Role) *session.Session {
	t.Helper()
	s, err := f.sessions.New()
	require.NoError(t, err)
	require.NoError(t, f.sessions.Authenticate(context.Background(), s, session.Principal{
		UserID: 7, Role: r, Name: "Kebede Alemu", Email: "kebede@example.com", Username: "kebede",
	}))
	return s
}

func (f *fixture) actions() []string {
	var out []string
	for _, e := range f.repo.Entries() {
		out = append(out, e.Action)
	}
	return out
}

func denialReason(t *testing.T, err error) string {
	t.Helper()
	var d *Denial
	require.True(t, errors.As(err, &d), "expected *Denial, got %v", err)
	return d.Reason
}

func TestAuthorizeOfficerOnAdminPage(t *testing.T) {
	f := newFixture(t)
	s := f.signIn(t, role.Officer)

	snap, err := f.gate.Authorize(context.Background(), s, role.Exactly(role.Admin), "admin/users")
	assert.Nil(t, snap)
	assert.Equal(t, ReasonUnauthorized, denialReason(t, err))

	entries := f.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionUnauthorizedAccess, entries[0].Action)
	assert.Contains(t, entries[0].Details, "admin/users")
	assert.Contains(t, entries[0].Details, "officer")
	assert.Equal(t, int64(7), entries[0].UserID)
}

func TestAuthorizeAllowsAndTouches(t *testing.T) {
	f := newFixture(t)
	s := f.signIn(t, role.Officer)

	f.clock.Advance(10 * time.Minute)
	snap, err := f.gate.Authorize(context.Background(), s, role.OneOf(role.Officer, role.Admin), "officer/dashboard")
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.UserID)
	assert.Equal(t, role.Officer, snap.UserRole)
	assert.Equal(t, "Kebede Alemu", snap.UserName)
	assert.Equal(t, f.clock.Now(), snap.LastActivity)
	assert.Equal(t, 30*time.Minute, snap.SessionLifetime)
	assert.Equal(t, 30*time.Minute, snap.RemainingTime)
	assert.Equal(t, f.clock.Now(), s.LastActivity)
	assert.Equal(t, []string{activity.ActionPageAccess}, f.actions())
	assert.Equal(t, "Accessed officer/dashboard", f.repo.Entries()[0].Details)
}

func TestAuthorizeAnyRoleSentinel(t *testing.T) {
	f := newFixture(t)
	for _, r := range role.All {
		_, err := f.gate.Authorize(context.Background(), f.signIn(t, r), role.Any, "profile")
		assert.NoError(t, err, r)
	}
}

func TestAuthorizeExpiredSession(t *testing.T) {
	f := newFixture(t)
	s := f.signIn(t, role.Admin)

	f.clock.Advance(1801 * time.Second)
	_, err := f.gate.Authorize(context.Background(), s, role.Exactly(role.Admin), "admin/dashboard")
	assert.Equal(t, ReasonSessionExpired, denialReason(t, err))

	entries := f.repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionSessionExpired, entries[0].Action)
	assert.Equal(t, "Session expired on admin/dashboard", entries[0].Details)
}

func TestAuthorizeAnonymousSessionLogsNothing(t *testing.T) {
	f := newFixture(t)
	s, err := f.sessions.New()
	require.NoError(t, err)

	_, err = f.gate.Authorize(context.Background(), s, role.Any, "user/dashboard")
	assert.Equal(t, ReasonSessionExpired, denialReason(t, err))
	assert.Empty(t, f.repo.Entries())

	_, err = f.gate.Authorize(context.Background(), nil, role.Any, "user/dashboard")
	assert.Equal(t, ReasonSessionExpired, denialReason(t, err))
}

func TestAuthorizeUnknownStoredRole(t *testing.T) {
	f := newFixture(t)
	s := f.signIn(t, role.Role("superuser"))

	_, err := f.gate.Authorize(context.Background(), s, role.OneOf(role.User, role.Officer, role.Admin), "user/dashboard")
	assert.Equal(t, ReasonUnauthorized, denialReason(t, err))
}

func TestDenialError(t *testing.T) {
	assert.Equal(t, "access denied: csrf_failed", (&Denial{Reason: ReasonCSRFFailed}).Error())
	assert.Equal(t, "access denied to admin: unauthorized", (&Denial{Reason: ReasonUnauthorized, Page: "admin"}).Error())
}
