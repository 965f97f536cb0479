// Package app holds the application state shared by the HTTP API and the
// CLI: the current panel, its calibrated parameters and refresh bookkeeping.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/taylor"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// ErrNoData is returned by queries while no panel is loaded.
var ErrNoData = errors.New("data not available")

// Fetcher runs one fetch cycle.
type Fetcher interface {
	FetchAll(ctx context.Context) (*panel.Panel, error)
}

// snapshot is one successful refresh.
type snapshot struct {
	panel  *panel.Panel
	params models.RuleParams
	report *taylor.Report
}

// State is created once at startup. Readers never block on a refresh: a
// completed refresh swaps the snapshot atomically.
type State struct {
	fetcher Fetcher
	store   infra.Store
	log     logrus.FieldLogger
	metrics *metrics.Collectors
	now     func() time.Time

	current atomic.Pointer[snapshot]

	refreshMu sync.Mutex // one fetch cycle at a time

	mu          sync.RWMutex
	lastRefresh time.Time
	lastErr     error
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *State) { s.log = l } }

// WithMetrics sets the metric collectors.
func WithMetrics(m *metrics.Collectors) Option { return func(s *State) { s.metrics = m } }

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(s *State) { s.now = now } }

// NewState creates an empty state. store is consulted for cache status only.
func NewState(fetcher Fetcher, store infra.Store, opts ...Option) *State {
	s := &State{
		fetcher: fetcher,
		store:   store,
		log:     logrus.StandardLogger(),
		metrics: metrics.Default,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = infra.NopStore{}
	}
	return s
}

// Refresh runs one fetch cycle. On success the panel is replaced and
// recalibrated; on failure the previous panel, if any, stays in place and
// the error is recorded and returned.
func (s *State) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	p, err := s.fetcher.FetchAll(ctx)
	if err == nil && p.Empty() {
		err = ErrNoData
	}

	s.mu.Lock()
	s.lastRefresh = s.now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.metrics.Refresh(err, 0)
		s.log.WithError(err).Error("Refresh failed, keeping previous data")
		return err
	}

	params, report := taylor.Calibrate(p)
	entry := s.log.WithFields(report.Fields()).WithField("params", params)
	if report.Fallback() {
		entry.Warn("Calibration fell back to default parameters")
	} else {
		entry.Info("Calibrated rule parameters")
	}

	s.current.Store(&snapshot{panel: p, params: params, report: report})
	s.metrics.Refresh(nil, p.Len())
	return nil
}

// Panel returns the current panel, or false when none is loaded.
func (s *State) Panel() (*panel.Panel, bool) {
	snap := s.current.Load()
	if snap == nil {
		return nil, false
	}
	return snap.panel, true
}

// Params returns the calibrated parameters of the current panel.
func (s *State) Params() (models.RuleParams, *taylor.Report, error) {
	snap := s.current.Load()
	if snap == nil {
		return models.RuleParams{}, nil, ErrNoData
	}
	return snap.params, snap.report, nil
}

// LastError returns the error of the most recent refresh.
func (s *State) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Status reports cache freshness and the extent of the current panel.
func (s *State) Status(ctx context.Context) models.DataStatus {
	status := models.DataStatus{
		RepoCache:  s.store.Info(ctx, string(provider.SeriesRepoRate)),
		CPICache:   s.store.Info(ctx, string(provider.SeriesCPI)),
		GDPCache:   s.store.Info(ctx, string(provider.SeriesGDP)),
		ServerTime: s.now().In(utils.Prague).Format(time.RFC3339),
	}

	if p, ok := s.Panel(); ok {
		status.Observations = p.Len()
		status.DataAvailable = !p.Empty()
		if first, ok := p.First(); ok {
			from := utils.FormatMonth(first)
			status.DateRange.From = &from
		}
		if last, ok := p.Last(); ok {
			to := utils.FormatMonth(last)
			status.DateRange.To = &to
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.lastRefresh.IsZero() {
		status.LastRefresh = s.lastRefresh.In(utils.Prague).Format(time.RFC3339)
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Schedule starts periodic refreshes on the cron spec. An empty spec
// disables scheduling and returns a nil cron. The caller stops the
// returned cron.
func (s *State) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithLocation(utils.Prague))
	_, err := c.AddFunc(spec, func() {
		s.log.WithField("schedule", spec).Info("Scheduled refresh")
		_ = s.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
