package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.CacheConfig
		want any
	}{
		{"file", config.CacheConfig{Backend: config.CacheFile, Dir: filepath.Join(t.TempDir(), "c")}, &infra.FileStore{}},
		{"redis", config.CacheConfig{Backend: config.CacheRedis, Redis: config.RedisConfig{Addr: mr.Addr()}}, &infra.RedisStore{}},
		{"memory", config.CacheConfig{Backend: config.CacheMemory}, &infra.MemoryStore{}},
		{"none", config.CacheConfig{Backend: config.CacheNone}, infra.NopStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := NewStore(ctx, tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
			assert.NoError(t, closeFn())
		})
	}

	_, _, err := NewStore(ctx, config.CacheConfig{Backend: "s3"})
	assert.Error(t, err)
}

func pipelineConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.Cache.Backend = config.CacheMemory
	cfg.Pipeline.Epoch = "2000-01-01"
	cfg.Pipeline.Horizon = "2026-12-31"
	cfg.Pipeline.DataDir = t.TempDir()
	cfg.Sources.CNB.RateLogURL = "http://127.0.0.1:1/repo.txt"
	cfg.Sources.Eurostat.BaseURL = "http://127.0.0.1:1"
	return cfg
}

func TestNewPipeline(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p, err := NewPipeline(context.Background(), pipelineConfig(t), infra.Discard(), WithPipelineMetrics(m))
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &infra.MemoryStore{}, p.Store)
	assert.Same(t, p.Store, p.Aggregator.Store())
	_, ok := p.State.Panel()
	assert.False(t, ok)
}

func TestNewPipelineWithoutCache(t *testing.T) {
	p, err := NewPipeline(context.Background(), pipelineConfig(t), infra.Discard(),
		WithoutCache(), WithPipelineMetrics(metrics.New(nil)))
	require.NoError(t, err)
	assert.Equal(t, infra.NopStore{}, p.Store)
	assert.NoError(t, p.Close())
}

func TestNewPipelineBadEpoch(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Pipeline.Epoch = "Y2K"
	_, err := NewPipeline(context.Background(), cfg, infra.Discard())
	assert.Error(t, err)
}
