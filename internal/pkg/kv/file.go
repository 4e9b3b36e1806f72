package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thejerf/abtime"
)

const (
	fileDirPerm = 0o700
	filePerm    = 0o600
	fileSuffix  = ".json"
	tmpPrefix   = ".tmp-"
)

// keep keys filename safe on every OS we deploy to
var fileNameEncoder = strings.NewReplacer(
	"/", "!1",
	"\\", "!2",
	"?", "!3",
	"*", "!4",
	":", "!5",
	"\"", "!6",
	"<", "!7",
	">", "!8",
	"!", "!9",
	"|", "!0",
)

// fileRecord is the on-disk layout. Value holds the stored JSON document
// verbatim so records stay readable with a text editor.
type fileRecord struct {
	ExpiresAt int64           `json:"expires_at,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// FileStore writes one file per key under a directory. Values must be JSON.
type FileStore struct {
	dir   string
	clock abtime.AbstractTime
}

// NewFileStore creates dir if needed. A nil clock uses real time.
func NewFileStore(dir string, clock abtime.AbstractTime) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("kv: file store directory is empty")
	}
	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return nil, fmt.Errorf("create store dir %q: %w", dir, err)
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &FileStore{dir: dir, clock: clock}, nil
}

// Path returns the file that backs key.
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.dir, fileNameEncoder.Replace(key)+fileSuffix)
}

// Get treats an unreadable or undecodable file as absent and removes it.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path := f.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil || len(rec.Value) == 0 {
		_ = os.Remove(path)
		return nil, ErrNotFound
	}
	if rec.ExpiresAt > 0 && f.clock.Now().Unix() >= rec.ExpiresAt {
		_ = os.Remove(path)
		return nil, ErrNotFound
	}
	return []byte(rec.Value), nil
}

// Set writes through a temp file and rename so readers never see a torn write.
func (f *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("kv: value for %q is not JSON", key)
	}
	rec := fileRecord{Value: json.RawMessage(value)}
	if ttl > 0 {
		rec.ExpiresAt = f.clock.Now().Add(ttl).Unix()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, tmpPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(f.Path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
