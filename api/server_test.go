package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/cnbtaylor/internal/app"
	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/infra"
	"github.com/seenimoa/cnbtaylor/internal/metrics"
	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type stubFetcher struct {
	panel *panel.Panel
}

func (f stubFetcher) FetchAll(context.Context) (*panel.Panel, error) {
	return f.panel, nil
}

func testPanel(t *testing.T) *panel.Panel {
	t.Helper()
	p, err := panel.New(
		[]civil.Date{
			{Year: 2010, Month: time.January, Day: 31},
			{Year: 2010, Month: time.February, Day: 28},
			{Year: 2010, Month: time.March, Day: 31},
		},
		[]series.Value{series.Some(2.0), series.Some(2.25), series.Some(2.25)},
		[]series.Value{series.Some(2.0), series.Some(2.5), series.Some(3.0)},
		[]series.Value{series.Some(1.0), series.Some(1.0), series.Some(1.0)},
		[]series.Value{series.Some(2.0), series.Some(2.0), series.Some(2.0)},
	)
	require.NoError(t, err)
	return p
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.Backend = config.CacheMemory
	cfg.Cache.TTL = 24 * time.Hour
	cfg.Cache.Redis.Password = "supersecretpassword"
	cfg.Pipeline.Epoch = "2000-01-01"
	cfg.Pipeline.Horizon = "2026-12-31"
	return cfg
}

func newState(t *testing.T, p *panel.Panel) *app.State {
	t.Helper()
	state := app.NewState(stubFetcher{panel: p}, infra.NewMemoryStore(),
		app.WithLogger(infra.Discard()),
		app.WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	if p != nil {
		require.NoError(t, state.Refresh(context.Background()))
	}
	return state
}

func testServer(t *testing.T, withData bool) *Server {
	t.Helper()
	var p *panel.Panel
	if withData {
		p = testPanel(t)
	}
	return NewServer(testConfig(), newState(t, p), infra.Discard(),
		WithGatherer(prometheus.NewRegistry()))
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), "decode response")
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	rec := get(t, testServer(t, false), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
}

// ════════════════════════════════════════════════════════════════════
// No data
// ════════════════════════════════════════════════════════════════════

func TestNoDataEndpoints(t *testing.T) {
	srv := testServer(t, false)
	for _, path := range []string{"/api/data", "/api/taylor", "/api/default-params"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, srv, path)
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)
			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestStatusWithoutData(t *testing.T) {
	rec := get(t, testServer(t, false), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.DataStatus
	decode(t, rec, &st)
	assert.False(t, st.DataAvailable)
	assert.Zero(t, st.Observations)
	assert.Nil(t, st.DateRange.From)
	assert.Nil(t, st.DateRange.To)
	assert.NotEmpty(t, st.ServerTime)
}

// ════════════════════════════════════════════════════════════════════
// Data and rule queries
// ════════════════════════════════════════════════════════════════════

func TestHandleData(t *testing.T) {
	rec := get(t, testServer(t, true), "/api/data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	var data app.PanelData
	decode(t, rec, &data)
	assert.Equal(t, []string{"2010-01", "2010-02", "2010-03"}, data.Dates)
	v, ok := data.CPI[2].Get()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestHandleTaylorDefaults(t *testing.T) {
	rec := get(t, testServer(t, true), "/api/taylor")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res app.RuleResult
	decode(t, rec, &res)
	require.Len(t, res.ImpliedRate, 3)
	v, _ := res.ImpliedRate[1].Get()
	assert.Equal(t, 2.65, v)
}

func TestHandleTaylorParams(t *testing.T) {
	srv := testServer(t, true)

	// rho = 0 makes the rule equal its target.
	rec := get(t, srv, "/api/taylor?rho=0&rstar=1&alpha=0&beta=0&date_from=2010-02&date_to=2010-02")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res app.RuleResult
	decode(t, rec, &res)
	require.Equal(t, []string{"2010-02"}, res.Dates)
	v, _ := res.ImpliedRate[0].Get()
	assert.Equal(t, 3.5, v)
}

func TestHandleTaylorValidation(t *testing.T) {
	srv := testServer(t, true)
	tests := []struct {
		name   string
		query  string
		detail string
	}{
		{"rho too high", "rho=1.5", "rho must be less than or equal to 0.99"},
		{"rstar too low", "rstar=-3", "rstar must be greater than or equal to -2"},
		{"beta too high", "beta=3.01", "beta must be less than or equal to 3"},
		{"not a number", "alpha=abc", "alpha must be a number"},
		{"empty range", "date_from=1990-01&date_to=1990-12", app.ErrEmptyRange.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/api/taylor?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.detail, resp.Detail)
		})
	}
}

func TestHandleTaylorUnparsableDates(t *testing.T) {
	rec := get(t, testServer(t, true), "/api/taylor?date_from=yesterday")
	require.Equal(t, http.StatusOK, rec.Code)
	var res app.RuleResult
	decode(t, rec, &res)
	assert.Len(t, res.Dates, 3, "whole panel")
}

func TestHandleDefaultParams(t *testing.T) {
	rec := get(t, testServer(t, true), "/api/default-params")
	require.Equal(t, http.StatusOK, rec.Code)
	var params models.RuleParams
	decode(t, rec, &params)
	// Three months are too few to calibrate.
	assert.Equal(t, models.DefaultRuleParams(), params)
}

func TestHandleStatusWithData(t *testing.T) {
	rec := get(t, testServer(t, true), "/api/status")
	var st models.DataStatus
	decode(t, rec, &st)
	assert.True(t, st.DataAvailable)
	assert.Equal(t, 3, st.Observations)
	require.NotNil(t, st.DateRange.From)
	assert.Equal(t, "2010-01", *st.DateRange.From)
}

// ════════════════════════════════════════════════════════════════════
// Configuration
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig(t *testing.T) {
	rec := get(t, testServer(t, false), "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "supersecretpassword")

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, config.CacheMemory, resp.Cache.Backend)
	assert.Equal(t, "24h0m0s", resp.Cache.TTL)
	assert.Equal(t, map[string][]string{
		"repo_rate": {"cnb-txt"},
		"cpi":       {"eurostat"},
		"gdp":       {"eurostat"},
	}, resp.Sources.Coverage)
}

func TestConfigCoverageWithSecondarySources(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.Secondary = true
	resp := NewConfigResponse(cfg)
	assert.Equal(t, []string{"cnb-txt", "cnb-html"}, resp.Sources.Coverage["repo_rate"])
	assert.Equal(t, []string{"eurostat", "oecd", "imf"}, resp.Sources.Coverage["cpi"])
	assert.Equal(t, []string{"eurostat", "oecd"}, resp.Sources.Coverage["gdp"])
}

func TestHandleGetConfigKeys(t *testing.T) {
	rec := get(t, testServer(t, false), "/api/config/keys")
	var keys []config.SecretStatus
	decode(t, rec, &keys)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsSet)
	assert.Equal(t, "sup...ord", keys[0].Masked)
}

// ════════════════════════════════════════════════════════════════════
// Middleware, metrics and frontend
// ════════════════════════════════════════════════════════════════════

func TestCORS(t *testing.T) {
	srv := testServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SourceFetch("cpi", "eurostat", metrics.OutcomeOK)

	srv := NewServer(testConfig(), newState(t, nil), infra.Discard(), WithGatherer(reg))
	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cnbtaylor_source_fetch_total{outcome="ok",series="cpi",source="eurostat"} 1`)
}

func TestFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Taylor</h1>"), 0o644))
	cfg := testConfig()
	cfg.Web.Dir = dir
	srv := NewServer(cfg, newState(t, nil), infra.Discard())

	rec := get(t, srv, "/")
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "Taylor")

	// API routes take precedence over static files.
	assert.Equal(t, http.StatusOK, get(t, srv, "/health").Code)
}

func TestFrontendMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Web.Dir = filepath.Join(t.TempDir(), "missing")
	srv := NewServer(cfg, newState(t, nil), infra.Discard())
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/").Code)
}
