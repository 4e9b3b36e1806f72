// Package kv is the small keyed storage the session and rate limit layers
// persist through. Backends: in-process memory, a directory of JSON files,
// and Redis.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a key that is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a key/value store with per-key expiry. A ttl of zero means the
// key never expires. Implementations make single operations safe for
// concurrent use; sequences of operations are not atomic.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
