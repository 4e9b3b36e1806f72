// Package ratelimit throttles repeated attempts per (action, client identity)
// inside a sliding window and escalates to a timed lockout.
//
// Read-modify-write on a record is not synchronized. Two requests from the
// same identity in the same instant can both read N and both write N+1, so
// a burst may be under-counted by its concurrency. The credential check is
// unaffected by this; only throttle strictness is.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/pkg/kv"
)

// DefaultLockout applies when Options.Lockout is zero.
const DefaultLockout = 900 * time.Second

const (
	keyPrefix = "ratelimit:"
	// records outlive their window by a second so whole-second comparisons
	// see them until the boundary has passed
	recordSlack     = time.Second
	localIdentity   = "localhost"
	unknownIdentity = "unknown"
)

var errCorruptRecord = errors.New("ratelimit: corrupt record")

// Policy names an action and its threshold.
type Policy struct {
	Action      string
	MaxAttempts int
	Window      time.Duration
}

// Result is the outcome of Check.
type Result struct {
	Allowed           bool          `json:"allowed"`
	RemainingAttempts int           `json:"remaining_attempts"`
	BlockedUntil      time.Time     `json:"-"`
	RemainingBlock    time.Duration `json:"-"`
	Message           string        `json:"message"`
}

// RemainingBlockSeconds is the lockout left, rounded up.
func (r Result) RemainingBlockSeconds() int64 {
	return int64(math.Ceil(r.RemainingBlock.Seconds()))
}

// Info is the read-only view shown next to login forms.
type Info struct {
	Attempts     int       `json:"attempts"`
	Remaining    int       `json:"remaining"`
	Blocked      bool      `json:"blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// LockoutFunc is told when a lockout begins.
type LockoutFunc func(action, identity string, until time.Time)

type Options struct {
	Clock     abtime.AbstractTime
	Lockout   time.Duration
	Logger    *zap.Logger
	OnLockout LockoutFunc
}

type Limiter struct {
	store     kv.Store
	clock     abtime.AbstractTime
	lockout   time.Duration
	logger    *zap.Logger
	onLockout LockoutFunc
}

func New(store kv.Store, opts Options) *Limiter {
	l := &Limiter{
		store:     store,
		clock:     opts.Clock,
		lockout:   opts.Lockout,
		logger:    opts.Logger,
		onLockout: opts.OnLockout,
	}
	if l.clock == nil {
		l.clock = abtime.NewRealTime()
	}
	if l.lockout <= 0 {
		l.lockout = DefaultLockout
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Lockout returns the configured lockout duration.
func (l *Limiter) Lockout() time.Duration { return l.lockout }

func recordKey(action, identity string) string {
	return keyPrefix + action + ":" + identity
}

// Check counts one attempt and decides whether it may proceed. An active
// lockout rejects without counting and outlives the window it started in.
func (l *Limiter) Check(ctx context.Context, action, identity string, maxAttempts int, window time.Duration) Result {
	now := l.clock.Now()
	key := recordKey(action, identity)

	rec, found, err := l.load(ctx, key)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("action", action), zap.String("identity", identity), zap.Error(err))
		return Result{
			Allowed:           true,
			RemainingAttempts: maxAttempts,
			Message:           "Rate limiting temporarily disabled",
		}
	}

	switch {
	case found && rec.Blocked(now):
		remaining := rec.blockedUntilTime().Sub(now)
		return Result{
			Allowed:        false,
			BlockedUntil:   rec.blockedUntilTime(),
			RemainingBlock: remaining,
			Message:        fmt.Sprintf("Too many attempts. Try again in %d minutes.", ceilMinutes(remaining)),
		}
	case !found || rec.WindowExpired(now, window):
		rec = freshRecord(now)
	default:
		rec.Attempts++
		rec.BlockedUntil = nil
	}

	if rec.Attempts > maxAttempts {
		until := now.Add(l.lockout).Unix()
		rec.BlockedUntil = &until
		l.save(ctx, key, rec, l.lockout)
		l.logger.Info("rate limit lockout",
			zap.String("action", action), zap.String("identity", identity), zap.Int("attempts", rec.Attempts))
		if l.onLockout != nil {
			l.onLockout(action, identity, rec.blockedUntilTime())
		}
		return Result{
			Allowed:        false,
			BlockedUntil:   rec.blockedUntilTime(),
			RemainingBlock: l.lockout,
			Message:        fmt.Sprintf("Too many failed attempts. Account locked for %d minutes.", ceilMinutes(l.lockout)),
		}
	}

	l.save(ctx, key, rec, window)
	remaining := maxAttempts - rec.Attempts
	return Result{
		Allowed:           true,
		RemainingAttempts: remaining,
		Message:           fmt.Sprintf("Attempts remaining: %d", remaining),
	}
}

// CheckPolicy is Check with the threshold taken from p.
func (l *Limiter) CheckPolicy(ctx context.Context, p Policy, identity string) Result {
	return l.Check(ctx, p.Action, identity, p.MaxAttempts, p.Window)
}

// RecordSuccess forgets every attempt for the pair, lockout included.
func (l *Limiter) RecordSuccess(ctx context.Context, action, identity string) {
	if err := l.store.Delete(ctx, recordKey(action, identity)); err != nil {
		l.logger.Warn("could not clear rate limit record",
			zap.String("action", action), zap.String("identity", identity), zap.Error(err))
	}
}

// Info never fails; unreadable state reads as no attempts.
func (l *Limiter) Info(ctx context.Context, action, identity string, maxAttempts int, window time.Duration) Info {
	empty := Info{Remaining: maxAttempts}
	now := l.clock.Now()

	rec, found, err := l.load(ctx, recordKey(action, identity))
	if err != nil || !found {
		return empty
	}
	if rec.Blocked(now) {
		return Info{Attempts: rec.Attempts, Remaining: 0, Blocked: true, BlockedUntil: rec.blockedUntilTime()}
	}
	if rec.WindowExpired(now, window) {
		return empty
	}
	remaining := maxAttempts - rec.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return Info{Attempts: rec.Attempts, Remaining: remaining}
}

// InfoPolicy is Info with the threshold taken from p.
func (l *Limiter) InfoPolicy(ctx context.Context, p Policy, identity string) Info {
	return l.Info(ctx, p.Action, identity, p.MaxAttempts, p.Window)
}

// load distinguishes a missing or corrupt record (found=false, nil error)
// from a store that cannot be read.
func (l *Limiter) load(ctx context.Context, key string) (Record, bool, error) {
	data, err := l.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec, err := UnmarshalRecord(data)
	if err != nil {
		l.logger.Warn("discarding corrupt rate limit record", zap.String("key", key), zap.Error(err))
		return Record{}, false, nil
	}
	return rec, true, nil
}

// save logs and swallows write failures; the decision already made stands.
func (l *Limiter) save(ctx context.Context, key string, rec Record, ttl time.Duration) {
	data, err := rec.Marshal()
	if err == nil {
		err = l.store.Set(ctx, key, data, ttl+recordSlack)
	}
	if err != nil {
		l.logger.Warn("could not persist rate limit record", zap.String("key", key), zap.Error(err))
	}
}

func ceilMinutes(d time.Duration) int64 {
	return int64(math.Ceil(d.Minutes()))
}

// Identity derives the limiter identity from a remote address. Loopback
// addresses collapse to one identity and ports are dropped.
func Identity(addr string) string {
	host := strings.TrimSpace(addr)
	if host == "" {
		return unknownIdentity
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, localIdentity) {
		return localIdentity
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() {
			return localIdentity
		}
		return ip.String()
	}
	return host
}
