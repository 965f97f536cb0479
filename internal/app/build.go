package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/datasource"
	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
	"github.com/seenimoa/cnbtaylor/internal/providers"
	"github.com/seenimoa/cnbtaylor/internal/providers/fallback"
)

// NewStore opens the snapshot cache selected by cfg. The returned close
// function releases backend connections.
func NewStore(ctx context.Context, cfg config.CacheConfig) (infra.Store, func() error, error) {
	noop := func() error { return nil }
	ttl := infra.WithTTL(cfg.TTL)

	switch cfg.Backend {
	case config.CacheFile:
		s, err := infra.NewFileStore(cfg.Dir, ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.CacheRedis:
		s, err := infra.NewRedisStore(ctx, infra.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.CacheMemory:
		return infra.NewMemoryStore(ttl), noop, nil
	case config.CacheNone:
		return infra.NopStore{}, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// Pipeline is the assembled fetch pipeline.
type Pipeline struct {
	Store      infra.Store
	Aggregator *datasource.Aggregator
	State      *State

	close func() error
}

// PipelineOption adjusts how the pipeline is built.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	noCache bool
	metrics *metrics.Collectors
}

// WithoutCache forces every fetch to go to the sources.
func WithoutCache() PipelineOption { return func(o *pipelineOptions) { o.noCache = true } }

// WithPipelineMetrics sets the collectors used by fetchers and state.
func WithPipelineMetrics(m *metrics.Collectors) PipelineOption {
	return func(o *pipelineOptions) { o.metrics = m }
}

// NewPipeline wires the store, the live sources, the offline datasets and
// the state from cfg.
func NewPipeline(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts ...PipelineOption) (*Pipeline, error) {
	o := pipelineOptions{metrics: metrics.Default}
	for _, opt := range opts {
		opt(&o)
	}

	epoch, err := cfg.Pipeline.EpochDate()
	if err != nil {
		return nil, err
	}
	horizon, err := cfg.Pipeline.HorizonDate()
	if err != nil {
		return nil, err
	}

	var (
		store     infra.Store = infra.NopStore{}
		closeFunc             = func() error { return nil }
	)
	if !o.noCache {
		store, closeFunc, err = NewStore(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	reg, err := providers.NewRegistry(cfg.Sources)
	if err != nil {
		_ = closeFunc()
		return nil, fmt.Errorf("register sources: %w", err)
	}

	agg := datasource.NewAggregator(reg, datasource.Options{
		Store:    store,
		Fallback: fallback.NewLoader(cfg.Pipeline.DataDir),
		Epoch:    epoch,
		Horizon:  horizon,
		Logger:   log,
		Metrics:  o.metrics,
	})
	state := NewState(agg, store, WithLogger(log), WithMetrics(o.metrics))

	return &Pipeline{Store: store, Aggregator: agg, State: state, close: closeFunc}, nil
}

// Close releases the cache backend.
func (p *Pipeline) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
