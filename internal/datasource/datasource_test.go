package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/providers/fallback"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

type fakeSource struct {
	provider.BaseSource
	raw   *provider.Raw
	err   error
	calls atomic.Int32
}

func newFake(name string, key provider.SeriesKey, raw *provider.Raw, err error) *fakeSource {
	return &fakeSource{
		BaseSource: provider.NewBaseSource(name, key, provider.ClientOptions{}),
		raw:        raw,
		err:        err,
	}
}

func (f *fakeSource) Fetch(context.Context) (*provider.Raw, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func d(y, m, day int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: day}
}

var (
	epoch   = d(2000, 1, 1)
	horizon = d(2000, 3, 31)
	now     = time.Unix(1_700_000_000, 0)
)

func rateRaw() *provider.Raw {
	return &provider.Raw{Source: "fake", Series: provider.SeriesRepoRate, Changes: []series.Change{
		{Date: d(1999, 12, 15), Rate: 5.25},
		{Date: d(2000, 2, 10), Rate: 5.0},
	}}
}

func cpiRaw() *provider.Raw {
	return &provider.Raw{Source: "fake", Series: provider.SeriesCPI, Observations: []series.Observation{
		{Period: "1999-01", Value: 100}, {Period: "1999-02", Value: 100}, {Period: "1999-03", Value: 100},
		{Period: "2000-01", Value: 103}, {Period: "2000-02", Value: 102}, {Period: "2000-03", Value: 101.123456},
	}}
}

func gdpRaw() *provider.Raw {
	return &provider.Raw{Source: "fake", Series: provider.SeriesGDP, Observations: []series.Observation{
		{Period: "1999-Q1", Value: 100}, {Period: "2000-Q1", Value: 102},
	}}
}

type fixture struct {
	store   *infra.MemoryStore
	metrics *metrics.Collectors
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := infra.NewMemoryStore(infra.WithClock(func() time.Time { return now }))
	m := metrics.New(prometheus.NewRegistry())
	return &fixture{
		store:   store,
		metrics: m,
		opts: Options{
			Store:   store,
			Epoch:   epoch,
			Horizon: horizon,
			Logger:  infra.Discard(),
			Metrics: m,
		},
	}
}

func (f *fixture) count(key, source, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.SourceFetches.WithLabelValues(key, source, outcome))
}

func values(t *testing.T, s series.Series) []float64 {
	t.Helper()
	out := make([]float64, len(s))
	for i, p := range s {
		v, ok := p.Value.Get()
		require.True(t, ok, "point %d absent", i)
		out[i] = v
	}
	return out
}

func TestNormalize(t *testing.T) {
	rate, err := Normalize(provider.SeriesRepoRate, rateRaw(), epoch, horizon)
	require.NoError(t, err)
	assert.Equal(t, []civil.Date{d(2000, 1, 31), d(2000, 2, 29), d(2000, 3, 31)}, rate.Dates())
	assert.Equal(t, []float64{5.25, 5.0, 5.0}, values(t, rate))

	cpi, err := Normalize(provider.SeriesCPI, cpiRaw(), epoch, horizon)
	require.NoError(t, err)
	assert.Equal(t, 3, cpi.Len())
	assert.InDelta(t, 3.0, values(t, cpi)[0], 1e-9)

	gdp, err := Normalize(provider.SeriesGDP, gdpRaw(), epoch, horizon)
	require.NoError(t, err)
	assert.Equal(t, 3, gdp.Len())
	for _, v := range values(t, gdp) {
		assert.InDelta(t, 2.0, v, 1e-9)
	}
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(provider.SeriesRepoRate, &provider.Raw{Source: "x"}, epoch, horizon)
	var pe *provider.ParseError
	assert.True(t, errors.As(err, &pe))

	bad := &provider.Raw{Source: "x", Observations: []series.Observation{{Period: "sometime", Value: 1}}}
	_, err = Normalize(provider.SeriesCPI, bad, epoch, horizon)
	assert.True(t, errors.As(err, &pe))

	_, err = Normalize("unknown", &provider.Raw{}, epoch, horizon)
	assert.Error(t, err)
}

func TestFetcherLiveThenCache(t *testing.T) {
	f := newFixture(t)
	src := newFake("eurostat", provider.SeriesCPI, cpiRaw(), nil)
	fetcher := NewSeriesFetcher(provider.SeriesCPI, []provider.Source{src}, f.opts)

	first, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	// 101.123456 / 100 yields 1.12345600...; four decimals are kept.
	assert.Equal(t, 1.1235, values(t, first)[2])

	second, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())

	assert.Equal(t, 1.0, f.count("cpi", "eurostat", metrics.OutcomeOK))
	assert.Equal(t, 1.0, f.count("cpi", "cache", metrics.OutcomeCacheHit))
	assert.True(t, f.store.Info(context.Background(), "cpi").Exists)
}

func TestFetcherSnapshotShape(t *testing.T) {
	f := newFixture(t)
	fetcher := NewSeriesFetcher(provider.SeriesRepoRate,
		[]provider.Source{newFake("cnb-txt", provider.SeriesRepoRate, rateRaw(), nil)}, f.opts)
	_, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	payload, ok, err := f.store.Get(context.Background(), "repo_rate")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"dates":["2000-01-31","2000-02-29","2000-03-31"],"values":[5.25,5,5]}`, string(payload))
}

func TestFetcherSourceOrder(t *testing.T) {
	f := newFixture(t)
	broken := newFake("eurostat", provider.SeriesGDP, nil, &provider.HTTPError{StatusCode: 503, URL: "x"})
	reshaped := newFake("oecd-a", provider.SeriesGDP, &provider.Raw{Source: "oecd-a",
		Observations: []series.Observation{{Period: "Q1/2000", Value: 1}}}, nil)
	good := newFake("oecd", provider.SeriesGDP, gdpRaw(), nil)
	unused := newFake("spare", provider.SeriesGDP, gdpRaw(), nil)

	fetcher := NewSeriesFetcher(provider.SeriesGDP, []provider.Source{broken, reshaped, good, unused}, f.opts)
	s, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	assert.EqualValues(t, 1, broken.calls.Load())
	assert.EqualValues(t, 1, reshaped.calls.Load())
	assert.EqualValues(t, 1, good.calls.Load())
	assert.EqualValues(t, 0, unused.calls.Load())
	assert.Equal(t, 1.0, f.count("gdp", "eurostat", metrics.OutcomeError))
	assert.Equal(t, 1.0, f.count("gdp", "oecd-a", metrics.OutcomeError))
	assert.Equal(t, 1.0, f.count("gdp", "oecd", metrics.OutcomeOK))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFetcherOfflineDataset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "repo_rate.csv", "date,rate\n1999-12-15,5.25\n2000-02-10,5.0\n")

	f := newFixture(t)
	f.opts.Fallback = fallback.NewLoader(dir)
	down := newFake("cnb-txt", provider.SeriesRepoRate, nil, errors.New("connection refused"))

	s, err := NewSeriesFetcher(provider.SeriesRepoRate, []provider.Source{down}, f.opts).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{5.25, 5.0, 5.0}, values(t, s))
	assert.Equal(t, 1.0, f.count("repo_rate", metrics.SourceFallback, metrics.OutcomeFallback))
}

func TestFetcherUnavailable(t *testing.T) {
	f := newFixture(t)
	f.opts.Fallback = fallback.NewLoader(t.TempDir())
	down := newFake("eurostat", provider.SeriesCPI, nil, errors.New("timeout"))

	_, err := NewSeriesFetcher(provider.SeriesCPI, []provider.Source{down}, f.opts).Fetch(context.Background())
	var ue *provider.SourceUnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, provider.SeriesCPI, ue.Series)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, f.store.Info(context.Background(), "cpi").Exists)
	assert.Equal(t, 1.0, f.count("cpi", metrics.SourceFallback, metrics.OutcomeUnavailable))
}

func TestFetcherNoOfflineLoader(t *testing.T) {
	f := newFixture(t)
	_, err := NewSeriesFetcher(provider.SeriesGDP, nil, f.opts).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoOfflineData)
}

func TestFetcherCorruptCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), "cpi", json.RawMessage(`{"dates":["yesterday"],"values":[1]}`)))

	src := newFake("eurostat", provider.SeriesCPI, cpiRaw(), nil)
	s, err := NewSeriesFetcher(provider.SeriesCPI, []provider.Source{src}, f.opts).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestSnapshotNulls(t *testing.T) {
	s := series.Series{
		{Date: d(2000, 1, 31), Value: series.Some(1.5)},
		{Date: d(2000, 2, 29), Value: series.None()},
	}
	b, err := json.Marshal(NewSnapshot(s))
	require.NoError(t, err)
	assert.JSONEq(t, `{"dates":["2000-01-31","2000-02-29"],"values":[1.5,null]}`, string(b))

	back, err := decodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = Snapshot{Dates: []string{"2000-01-31"}}.Series()
	assert.Error(t, err)
}

func registry(t *testing.T, sources ...provider.Source) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, s := range sources {
		require.NoError(t, reg.Register(s))
	}
	return reg
}

func TestAggregatorFetchAll(t *testing.T) {
	f := newFixture(t)
	reg := registry(t,
		newFake("cnb-txt", provider.SeriesRepoRate, rateRaw(), nil),
		newFake("eurostat", provider.SeriesCPI, cpiRaw(), nil),
		newFake("eurostat", provider.SeriesGDP, gdpRaw(), nil),
	)
	agg := NewAggregator(reg, f.opts)
	assert.Same(t, f.store, agg.Store())
	require.NotNil(t, agg.Fetcher(provider.SeriesCPI))

	p, err := agg.FetchAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, d(2000, 1, 31), p.Dates[0])

	row := p.Row(1)
	assert.Equal(t, series.Some(5.0), row.Rate)
	assert.Equal(t, series.Some(2.0), row.CPI)
	assert.Equal(t, series.Some(2.0), row.GDP)
	assert.Equal(t, series.Some(4.0), row.Target)
}

func TestAggregatorFailedSeries(t *testing.T) {
	f := newFixture(t)
	reg := registry(t,
		newFake("cnb-txt", provider.SeriesRepoRate, rateRaw(), nil),
		newFake("eurostat", provider.SeriesCPI, nil, errors.New("down")),
		newFake("eurostat", provider.SeriesGDP, gdpRaw(), nil),
	)
	_, err := NewAggregator(reg, f.opts).FetchAll(context.Background())
	var ue *provider.SourceUnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, provider.SeriesCPI, ue.Series)

	// The healthy series still reached the cache.
	assert.True(t, f.store.Info(context.Background(), "repo_rate").Exists)
	assert.True(t, f.store.Info(context.Background(), "gdp").Exists)
}
