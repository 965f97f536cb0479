package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/seenimoa/cnbtaylor/pkg/models"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	dir  string
	opts storeOptions
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir, opts: buildOptions(opts)}, nil
}

// Dir returns the cache directory.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileStore) read(key string) (envelope, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return envelope{}, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return envelope{}, false, nil
	}
	if err != nil {
		return envelope{}, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return envelope{}, true, fmt.Errorf("%s: %w", key, err)
	}
	return e, true, nil
}

// Get retrieves a fresh payload.
func (f *FileStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	e, ok, err := f.read(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if !f.opts.fresh(e) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set writes payload to a temporary file and renames it over the entry, so
// readers never observe a partial write.
func (f *FileStore) Set(_ context.Context, key string, payload any) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := newEnvelope(f.opts.clock(), payload)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

// Info describes the entry under key.
func (f *FileStore) Info(_ context.Context, key string) models.CacheInfo {
	e, ok, err := f.read(key)
	switch {
	case !ok:
		return models.CacheInfo{}
	case err != nil:
		return models.CacheInfo{Exists: true}
	}
	return f.opts.info(e)
}
