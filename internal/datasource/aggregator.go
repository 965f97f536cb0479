package datasource

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

// Aggregator fetches the three input series concurrently and merges them
// into a panel.
type Aggregator struct {
	fetchers map[provider.SeriesKey]*SeriesFetcher
	opts     Options
}

// NewAggregator creates an aggregator whose live sources come from reg.
func NewAggregator(reg *provider.Registry, opts Options) *Aggregator {
	opts = opts.withDefaults()
	a := &Aggregator{
		fetchers: make(map[provider.SeriesKey]*SeriesFetcher, 3),
		opts:     opts,
	}
	for _, key := range provider.AllSeries() {
		a.fetchers[key] = NewSeriesFetcher(key, reg.SourcesFor(key), opts)
	}
	return a
}

// Fetcher returns the fetcher for key, or nil.
func (a *Aggregator) Fetcher(key provider.SeriesKey) *SeriesFetcher { return a.fetchers[key] }

// Store returns the cache shared by the fetchers.
func (a *Aggregator) Store() infra.Store { return a.opts.Store }

// FetchAll runs one fetch cycle and builds the panel. The series use
// distinct cache keys and are fetched in parallel. A failing series does
// not cancel the others.
func (a *Aggregator) FetchAll(ctx context.Context) (*panel.Panel, error) {
	log := a.opts.Logger.WithField("cycle_id", uuid.NewString())
	log.Info("Starting fetch cycle")

	keys := provider.AllSeries()
	results := make([]series.Series, len(keys))

	var g errgroup.Group
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			s, err := a.fetchers[key].fetch(ctx, log)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", key, err)
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Fetch cycle failed")
		return nil, err
	}

	p := panel.Build(results[0], results[1], results[2], a.opts.Epoch)
	log.WithField("observations", p.Len()).Info("Panel built")
	return p, nil
}
