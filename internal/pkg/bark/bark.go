// Package bark pushes operator alerts through the Bark notification API.
// The portal uses it to announce rate limit lockouts.
package bark

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thejerf/abtime"
	"go.uber.org/zap"
)

const defaultServer = "https://api.day.app"

var errNoKey = errors.New("bark key not configured")

type Config struct {
	Key    string
	Server string
	Title  string
	// Throttle is the quiet period per action and identity. Zero means ten minutes.
	Throttle time.Duration
}

// Service sends notifications, at most one per key within the throttle window.
type Service struct {
	cfg        Config
	httpClient *http.Client
	clock      abtime.AbstractTime
	logger     *zap.Logger
	async      bool

	mu         sync.Mutex
	lastPushAt map[string]time.Time
}

// New returns a Service. With an empty key every call is a no-op.
func New(cfg Config, clock abtime.AbstractTime, logger *zap.Logger) *Service {
	if strings.TrimSpace(cfg.Server) == "" {
		cfg.Server = defaultServer
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	if cfg.Title == "" {
		cfg.Title = "Yetuga"
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = 10 * time.Minute
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      clock,
		logger:     logger,
		async:      true,
		lastPushAt: make(map[string]time.Time),
	}
}

// Enabled reports whether a device key is configured.
func (s *Service) Enabled() bool { return s.cfg.Key != "" }

type pushPayload struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Group     string `json:"group,omitempty"`
}

// Push sends a notification immediately (no throttle).
func (s *Service) Push(title, body string) error {
	if !s.Enabled() {
		return errNoKey
	}
	b, err := json.Marshal(pushPayload{
		DeviceKey: s.cfg.Key,
		Title:     fmt.Sprintf("[%s] %s", s.cfg.Title, title),
		Body:      body,
		Group:     s.cfg.Title,
	})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(s.cfg.Server+"/push", "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bark push: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NotifyLockout announces a rate limit lockout. Repeats for the same action
// and identity inside the throttle window are dropped. Keys whose window has
// passed are forgotten on the next push.
func (s *Service) NotifyLockout(action, identity string, until time.Time) {
	if !s.Enabled() {
		return
	}
	throttleKey := action + "|" + identity
	now := s.clock.Now()

	s.mu.Lock()
	last, ok := s.lastPushAt[throttleKey]
	if ok && now.Sub(last) < s.cfg.Throttle {
		s.mu.Unlock()
		return
	}
	for key, at := range s.lastPushAt {
		if now.Sub(at) >= s.cfg.Throttle {
			delete(s.lastPushAt, key)
		}
	}
	s.lastPushAt[throttleKey] = now
	s.mu.Unlock()

	body := fmt.Sprintf("Action: %s Client: %s Locked until: %s", action, identity, until.Format(time.RFC3339))
	send := func() {
		if err := s.Push("Repeated failed attempts", body); err != nil {
			s.logger.Warn("bark push failed", zap.String("action", action), zap.Error(err))
		}
	}
	if s.async {
		go send()
		return
	}
	send()
}
