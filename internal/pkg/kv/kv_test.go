package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/yetuga/portal/internal/pkg/redis"
)

type backend struct {
	name    string
	store   Store
	advance func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	memClock := abtime.NewManual()
	fileClock := abtime.NewManual()
	fs, err := NewFileStore(t.TempDir(), fileClock)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return []backend{
		{"memory", NewMemoryStore(memClock), memClock.Advance},
		{"file", fs, fileClock.Advance},
		{"redis", NewRedisStore(client, "test:"), mr.FastForward},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_, err := b.store.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, b.store.Set(ctx, "ratelimit:login:localhost", []byte(`{"attempts":1}`), 0))
			got, err := b.store.Get(ctx, "ratelimit:login:localhost")
			require.NoError(t, err)
			assert.JSONEq(t, `{"attempts":1}`, string(got))

			require.NoError(t, b.store.Delete(ctx, "ratelimit:login:localhost"))
			_, err = b.store.Get(ctx, "ratelimit:login:localhost")
			assert.True(t, errors.Is(err, ErrNotFound))

			// deleting twice is fine
			assert.NoError(t, b.store.Delete(ctx, "ratelimit:login:localhost"))
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "session:abc", []byte(`{"user_id":7}`), time.Minute))

			b.advance(59 * time.Second)
			_, err := b.store.Get(ctx, "session:abc")
			require.NoError(t, err)

			b.advance(2 * time.Second)
			_, err = b.store.Get(ctx, "session:abc")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	key := `ratelimit:login:../../etc/passwd`
	require.NoError(t, fs.Set(context.Background(), key, []byte(`{}`), 0))

	assert.Equal(t, dir, filepath.Dir(fs.Path(key)))
	_, err = os.Stat(fs.Path(key))
	assert.NoError(t, err)
}

func TestFileStoreCorruptFileIsAbsent(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(fs.Path("broken"), []byte("{not json"), 0o600))
	_, err = fs.Get(context.Background(), "broken")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, statErr := os.Stat(fs.Path("broken"))
	assert.True(t, os.IsNotExist(statErr), "corrupt file should be removed")
}

func TestFileStoreRejectsNonJSON(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, fs.Set(context.Background(), "k", []byte("plain"), 0))
}

func TestNewFileStoreEmptyDir(t *testing.T) {
	_, err := NewFileStore(" ", nil)
	assert.Error(t, err)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemoryStore(nil)
	ctx := context.Background()
	value := []byte(`{"a":1}`)
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[2] = 'b'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[2] = 'c'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, `{"a":1}`, string(again))
	assert.Equal(t, 1, m.Len())
}
