package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/pkg/kv"
	"github.com/yetuga/portal/internal/pkg/tokenvault"
)

const (
	DefaultLifetime         = 1800 * time.Second
	DefaultRotationInterval = 300 * time.Second
	DefaultCookieName       = "YETUGA_SESSID"

	keyPrefix = "session:"
)

type Options struct {
	Store            kv.Store
	Clock            abtime.AbstractTime
	Vault            *tokenvault.Vault
	Logger           *zap.Logger
	Lifetime         time.Duration
	RotationInterval time.Duration
	CookieName       string
	SecureCookie     bool
}

// Manager creates, validates, rotates and destroys sessions.
type Manager struct {
	store    kv.Store
	clock    abtime.AbstractTime
	vault    *tokenvault.Vault
	logger   *zap.Logger
	lifetime time.Duration
	rotation time.Duration
	cookie   string
	secure   bool
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		clock:    opts.Clock,
		vault:    opts.Vault,
		logger:   opts.Logger,
		lifetime: opts.Lifetime,
		rotation: opts.RotationInterval,
		cookie:   opts.CookieName,
		secure:   opts.SecureCookie,
	}
	if m.clock == nil {
		m.clock = abtime.NewRealTime()
	}
	if m.vault == nil {
		m.vault = tokenvault.Default
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.lifetime <= 0 {
		m.lifetime = DefaultLifetime
	}
	if m.rotation <= 0 {
		m.rotation = DefaultRotationInterval
	}
	if m.cookie == "" {
		m.cookie = DefaultCookieName
	}
	return m
}

func (m *Manager) Lifetime() time.Duration { return m.lifetime }

func (m *Manager) CookieName() string { return m.cookie }

// Vault is the token source shared with the CSRF layer.
func (m *Manager) Vault() *tokenvault.Vault { return m.vault }

// Now is the manager's clock reading.
func (m *Manager) Now() time.Time { return m.clock.Now() }

// Start returns the session named by the request cookie, or a new anonymous
// one. When the store cannot be read the caller gets an anonymous session
// and the error, so unreadable state is never treated as signed in.
func (m *Manager) Start(ctx context.Context, r *http.Request) (*Session, error) {
	id := ""
	if c, err := r.Cookie(m.cookie); err == nil && validID(c.Value) {
		id = c.Value
	}
	if id == "" {
		return m.New()
	}

	s, err := m.Load(ctx, id)
	if err == nil {
		return s, nil
	}
	fresh, newErr := m.New()
	if newErr != nil {
		return nil, newErr
	}
	if errors.Is(err, kv.ErrNotFound) {
		return fresh, nil
	}
	return fresh, err
}

// New returns an anonymous session with a fresh identifier. Nothing is
// persisted until the session is modified and saved.
func (m *Manager) New() (*Session, error) {
	id, err := m.vault.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	return &Session{id: id, LastRegeneration: m.clock.Now()}, nil
}

// Load reads a stored session. Undecodable records read as kv.ErrNotFound.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	data, err := m.store.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn("discarding undecodable session", zap.Error(err))
		_ = m.store.Delete(ctx, keyPrefix+id)
		return nil, kv.ErrNotFound
	}
	s.id = id
	return &s, nil
}

// IsValid is false without a principal or timestamps, and false once more
// than the lifetime has passed since the last activity.
func (m *Manager) IsValid(s *Session) bool {
	if s == nil || s.destroyed || s.UserID == 0 || s.LoginTime.IsZero() || s.LastActivity.IsZero() {
		return false
	}
	return m.clock.Now().Sub(s.LastActivity) <= m.lifetime
}

// Touch records activity now. LastActivity never moves backwards.
func (m *Manager) Touch(s *Session) {
	now := m.clock.Now()
	if now.After(s.LastActivity) {
		s.LastActivity = now
	}
	s.dirty = true
}

// Remaining is the lifetime left before the session lapses.
func (m *Manager) Remaining(s *Session) time.Duration {
	left := m.lifetime - m.clock.Now().Sub(s.LastActivity)
	if left < 0 {
		return 0
	}
	return left
}

// RotateIfDue swaps the identifier once the rotation interval has passed.
func (m *Manager) RotateIfDue(ctx context.Context, s *Session) (bool, error) {
	if s.destroyed || m.clock.Now().Sub(s.LastRegeneration) <= m.rotation {
		return false, nil
	}
	if err := m.Rotate(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// Rotate issues a new identifier and drops the old record. Every attribute
// is kept.
func (m *Manager) Rotate(ctx context.Context, s *Session) error {
	id, err := m.vault.Generate()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}
	old := s.id
	s.id = id
	s.LastRegeneration = m.clock.Now()
	s.dirty = true
	if old != "" {
		if err := m.store.Delete(ctx, keyPrefix+old); err != nil {
			m.logger.Warn("could not delete rotated session", zap.Error(err))
		}
	}
	return nil
}

// Authenticate attaches p and rotates the identifier so a pre-login
// identifier cannot be reused. The CSRF token is dropped and will be
// reissued on next read.
func (m *Manager) Authenticate(ctx context.Context, s *Session, p Principal) error {
	if err := m.Rotate(ctx, s); err != nil {
		return err
	}
	now := m.clock.Now()
	s.UserID = p.UserID
	s.Role = p.Role
	s.Name = p.Name
	s.Email = p.Email
	s.Username = p.Username
	s.LoginTime = now
	s.LastActivity = now
	s.CSRFToken = ""
	s.destroyed = false
	return nil
}

// Refresh resets the activity clock for a valid session. It reports false
// and changes nothing otherwise.
func (m *Manager) Refresh(s *Session) bool {
	if !m.IsValid(s) {
		return false
	}
	m.Touch(s)
	return true
}

// Save persists a modified session and writes its cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil || s.destroyed || !s.dirty {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// keep the record past its validity so an expired visit can still be
	// attributed to the user that owned it
	if err := m.store.Set(ctx, keyPrefix+s.id, data, 2*m.lifetime); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.dirty = false
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy clears s, removes its record and expires the cookie. Calling it
// again is harmless.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	var err error
	if s != nil && s.id != "" {
		err = m.store.Delete(ctx, keyPrefix+s.id)
	}
	if s != nil {
		s.clear()
		s.destroyed = true
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

func validID(id string) bool {
	if len(id) != tokenvault.TokenLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
