// Package infra provides shared infrastructure components used across
// the application: the keyed snapshot cache and logging.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/seenimoa/cnbtaylor/pkg/models"
)

// DefaultTTL is the freshness window of a cached snapshot.
const DefaultTTL = 24 * time.Hour

// Store is a keyed snapshot cache with a freshness window.
//
// Get returns the payload written by the most recent Set for key if that
// write happened less than the TTL ago. An entry aged exactly TTL is stale.
// A missing or stale entry is reported as (nil, false, nil); an unreadable
// entry is reported with a non-nil error and should be treated as a miss.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, payload any) error
	Info(ctx context.Context, key string) models.CacheInfo
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	ttl   time.Duration
	clock Clock
}

// WithTTL sets the freshness window. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *storeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// envelope is the persisted form of an entry: a write timestamp in epoch
// seconds and the caller's opaque payload.
type envelope struct {
	Timestamp float64         `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func newEnvelope(now time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(envelope{
		Timestamp: float64(now.UnixNano()) / 1e9,
		Payload:   raw,
	})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode cache entry: %w", err)
	}
	if e.Payload == nil {
		return e, fmt.Errorf("decode cache entry: missing payload")
	}
	return e, nil
}

// age returns how long ago the envelope was written.
func (e envelope) age(now time.Time) time.Duration {
	written := time.Unix(0, int64(e.Timestamp*1e9))
	return now.Sub(written)
}

func (o storeOptions) fresh(e envelope) bool {
	return e.age(o.clock()) < o.ttl
}

func (o storeOptions) info(e envelope) models.CacheInfo {
	hours := math.Round(e.age(o.clock()).Hours()*10) / 10
	ts := e.Timestamp
	return models.CacheInfo{Exists: true, AgeHours: &hours, Timestamp: &ts}
}

// --- In-memory store ---

// MemoryStore is a thread-safe in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	opts    storeOptions
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
		opts:    buildOptions(opts),
	}
}

// Get retrieves a fresh payload.
func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	data, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return nil, false, err
	}
	if !m.opts.fresh(e) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set stores payload under key with the current time.
func (m *MemoryStore) Set(_ context.Context, key string, payload any) error {
	data, err := newEnvelope(m.opts.clock(), payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = data
	m.mu.Unlock()
	return nil
}

// Info describes the entry under key.
func (m *MemoryStore) Info(_ context.Context, key string) models.CacheInfo {
	m.mu.RLock()
	data, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return models.CacheInfo{}
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return models.CacheInfo{Exists: true}
	}
	return m.opts.info(e)
}

// --- No-op store ---

// NopStore never hits and discards writes. Used when every run must go to
// the sources, e.g. bulk export.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (json.RawMessage, bool, error) { return nil, false, nil }
func (NopStore) Set(context.Context, string, any) error                    { return nil }
func (NopStore) Info(context.Context, string) models.CacheInfo             { return models.CacheInfo{} }
