package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe registry of live sources.
// It keeps, for every series, the sources in the order they should be tried.
type Registry struct {
	mu      sync.RWMutex
	sources map[SeriesKey][]Source // series → sources (priority order)
}

// NewRegistry creates a new empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[SeriesKey][]Source)}
}

// Register appends a source to its series' priority list.
func (r *Registry) Register(s Source) error {
	if s.Name() == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	key := s.Series()
	if key == "" {
		return fmt.Errorf("source %q has no series", s.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sources[key] {
		if existing.Name() == s.Name() {
			return &ErrDuplicateSource{Series: key, Name: s.Name()}
		}
	}
	r.sources[key] = append(r.sources[key], s)
	return nil
}

// SourcesFor returns the sources for a series, in priority order.
func (r *Registry) SourcesFor(key SeriesKey) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.sources[key]
	out := make([]Source, len(list))
	copy(out, list)
	return out
}

// Coverage returns, for every series with at least one source, the source
// names in priority order.
func (r *Registry) Coverage() map[SeriesKey][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coverage := make(map[SeriesKey][]string, len(r.sources))
	for key, list := range r.sources {
		names := make([]string, len(list))
		for i, s := range list {
			names[i] = s.Name()
		}
		coverage[key] = names
	}
	return coverage
}

// Series returns the registered series keys, sorted.
func (r *Registry) Series() []SeriesKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]SeriesKey, 0, len(r.sources))
	for k := range r.sources {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
