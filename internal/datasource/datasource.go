// Package datasource turns live, offline and cached inputs into the
// normalized monthly series of the pipeline, and assembles them into a
// panel.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

// Precision is the number of decimals kept in normalized series.
const Precision = 4

// ErrNoOfflineData is wrapped when no offline loader is configured.
var ErrNoOfflineData = errors.New("no offline dataset configured")

// OfflineLoader reads the last-resort dataset for a series.
type OfflineLoader interface {
	Load(key provider.SeriesKey) (*provider.Raw, error)
}

// Options configures fetchers and the aggregator.
type Options struct {
	Store    infra.Store
	Fallback OfflineLoader
	Epoch    civil.Date
	Horizon  civil.Date
	Logger   logrus.FieldLogger
	Metrics  *metrics.Collectors
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = infra.NopStore{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}
	return o
}

// Snapshot is the cached form of a normalized series.
type Snapshot struct {
	Dates  []string       `json:"dates"`
	Values []series.Value `json:"values"`
}

// NewSnapshot encodes s with ISO dates.
func NewSnapshot(s series.Series) Snapshot {
	snap := Snapshot{
		Dates:  make([]string, len(s)),
		Values: make([]series.Value, len(s)),
	}
	for i, p := range s {
		snap.Dates[i] = p.Date.String()
		snap.Values[i] = p.Value
	}
	return snap
}

// Series decodes the snapshot.
func (s Snapshot) Series() (series.Series, error) {
	if len(s.Dates) != len(s.Values) {
		return nil, fmt.Errorf("snapshot has %d dates and %d values", len(s.Dates), len(s.Values))
	}
	points := make([]series.Point, len(s.Dates))
	for i, raw := range s.Dates {
		d, err := civil.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("snapshot date %q: %w", raw, err)
		}
		points[i] = series.Point{Date: d, Value: s.Values[i]}
	}
	return series.FromPoints(points), nil
}

func decodeSnapshot(payload json.RawMessage) (series.Series, error) {
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap.Series()
}

// Normalize converts a raw series to its monthly form:
//
//   - repo_rate: the rate in force at each month end, epoch..horizon;
//   - cpi: year-over-year inflation of the monthly index, in percent;
//   - gdp: year-over-year growth of the quarterly index, in percent,
//     spread over each quarter's months and carried to the horizon.
func Normalize(key provider.SeriesKey, raw *provider.Raw, epoch, horizon civil.Date) (series.Series, error) {
	switch key {
	case provider.SeriesRepoRate:
		if len(raw.Changes) == 0 {
			return nil, &provider.ParseError{Source: raw.Source, Detail: "no rate changes"}
		}
		return series.MonthlyFromChanges(raw.Changes, epoch, horizon), nil

	case provider.SeriesCPI:
		idx, err := series.FromObservations(raw.Observations, series.ToMonthEnd)
		if err != nil {
			return nil, &provider.ParseError{Source: raw.Source, Detail: "period", Err: err}
		}
		return series.MonthlyYoY(idx, epoch), nil

	case provider.SeriesGDP:
		idx, err := series.FromObservations(raw.Observations, series.ToQuarterEnd)
		if err != nil {
			return nil, &provider.ParseError{Source: raw.Source, Detail: "period", Err: err}
		}
		return series.QuarterlyYoYToMonthly(idx, epoch, horizon), nil
	}
	return nil, fmt.Errorf("unknown series %q", key)
}

// SeriesFetcher produces one normalized series: from the cache when fresh,
// otherwise from the first live source that succeeds, otherwise from the
// offline dataset.
type SeriesFetcher struct {
	key     provider.SeriesKey
	sources []provider.Source
	opts    Options
}

// NewSeriesFetcher creates a fetcher trying sources in order.
func NewSeriesFetcher(key provider.SeriesKey, sources []provider.Source, opts Options) *SeriesFetcher {
	return &SeriesFetcher{key: key, sources: sources, opts: opts.withDefaults()}
}

// Key returns the series key.
func (f *SeriesFetcher) Key() provider.SeriesKey { return f.key }

// Fetch returns the normalized series. Only the exhaustion of every live
// source and the offline dataset is an error (*provider.SourceUnavailableError).
func (f *SeriesFetcher) Fetch(ctx context.Context) (series.Series, error) {
	return f.fetch(ctx, f.opts.Logger)
}

func (f *SeriesFetcher) fetch(ctx context.Context, logger logrus.FieldLogger) (series.Series, error) {
	key := string(f.key)
	start := time.Now()
	defer f.opts.Metrics.ObserveFetch(key, start)

	log := logger.WithField("series", key)

	payload, ok, err := f.opts.Store.Get(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).Warn("Unreadable cache entry, fetching")
	case ok:
		s, err := decodeSnapshot(payload)
		if err == nil {
			log.WithFields(logrus.Fields{"points": s.Len(), "defined": s.Defined()}).Info("Using cached series")
			f.opts.Metrics.SourceFetch(key, "cache", metrics.OutcomeCacheHit)
			return s, nil
		}
		log.WithError(err).Warn("Corrupt cached series, fetching")
	}

	s, err := f.acquire(ctx, log)
	if err != nil {
		return nil, err
	}
	s = s.Round(Precision)

	if err := f.opts.Store.Set(ctx, key, NewSnapshot(s)); err != nil {
		log.WithError(err).Warn("Failed to cache series")
	}
	return s, nil
}

func (f *SeriesFetcher) acquire(ctx context.Context, log logrus.FieldLogger) (series.Series, error) {
	key := string(f.key)

	for _, src := range f.sources {
		slog := log.WithField("source", src.Name())
		s, err := f.fromSource(ctx, src)
		if err != nil {
			slog.WithError(err).Warn("Live source failed")
			f.opts.Metrics.SourceFetch(key, src.Name(), metrics.OutcomeError)
			continue
		}
		slog.WithFields(logrus.Fields{"points": s.Len(), "defined": s.Defined()}).Info("Fetched live series")
		f.opts.Metrics.SourceFetch(key, src.Name(), metrics.OutcomeOK)
		return s, nil
	}

	s, err := f.fromOffline()
	if err != nil {
		log.WithError(err).Error("No data available for series")
		f.opts.Metrics.SourceFetch(key, metrics.SourceFallback, metrics.OutcomeUnavailable)
		return nil, &provider.SourceUnavailableError{Series: f.key, Err: err}
	}
	log.WithField("points", s.Len()).Warn("Using offline dataset")
	f.opts.Metrics.SourceFetch(key, metrics.SourceFallback, metrics.OutcomeFallback)
	return s, nil
}

func (f *SeriesFetcher) fromSource(ctx context.Context, src provider.Source) (series.Series, error) {
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(f.key, raw, f.opts.Epoch, f.opts.Horizon)
}

func (f *SeriesFetcher) fromOffline() (series.Series, error) {
	if f.opts.Fallback == nil {
		return nil, ErrNoOfflineData
	}
	raw, err := f.opts.Fallback.Load(f.key)
	if err != nil {
		return nil, err
	}
	return Normalize(f.key, raw, f.opts.Epoch, f.opts.Horizon)
}
