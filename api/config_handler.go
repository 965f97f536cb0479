// Package api serves the configuration endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/providers"
)

// ConfigResponse is the JSON body returned by GET /api/config. Secrets are
// never included; see /api/config/keys.
type ConfigResponse struct {
	ConfigFile string          `json:"config_file,omitempty"`
	Cache      CacheSummary    `json:"cache"`
	Sources    SourcesSummary  `json:"sources"`
	Pipeline   PipelineSummary `json:"pipeline"`
	Refresh    string          `json:"refresh_schedule"`
}

// CacheSummary describes the snapshot cache.
type CacheSummary struct {
	Backend string `json:"backend"`
	TTL     string `json:"ttl"`
}

// SourcesSummary lists the live-source endpoints.
type SourcesSummary struct {
	Timeout      string `json:"timeout"`
	Secondary    bool   `json:"secondary"`
	CNBRateLog   string `json:"cnb_rate_log"`
	CNBRateTable string `json:"cnb_rate_table"`
	Eurostat     string `json:"eurostat"`
	OECD         string `json:"oecd"`
	IMF          string `json:"imf"`

	// Coverage lists the live sources of each series in priority order.
	Coverage map[string][]string `json:"coverage,omitempty"`
}

// PipelineSummary bounds the panel.
type PipelineSummary struct {
	Epoch   string `json:"epoch"`
	Horizon string `json:"horizon"`
}

// NewConfigResponse summarizes cfg.
func NewConfigResponse(cfg *config.Config) ConfigResponse {
	return ConfigResponse{
		ConfigFile: cfg.File,
		Cache: CacheSummary{
			Backend: cfg.Cache.Backend,
			TTL:     cfg.Cache.TTL.String(),
		},
		Sources: SourcesSummary{
			Timeout:      cfg.Sources.Timeout.String(),
			Secondary:    cfg.Sources.Secondary,
			CNBRateLog:   cfg.Sources.CNB.RateLogURL,
			CNBRateTable: cfg.Sources.CNB.RateTableURL,
			Eurostat:     cfg.Sources.Eurostat.BaseURL,
			OECD:         cfg.Sources.OECD.BaseURL,
			IMF:          cfg.Sources.IMF.BaseURL,
			Coverage:     sourceCoverage(cfg.Sources),
		},
		Pipeline: PipelineSummary{
			Epoch:   cfg.Pipeline.Epoch,
			Horizon: cfg.Pipeline.Horizon,
		},
		Refresh: cfg.Refresh.Schedule,
	}
}

// sourceCoverage returns the registered live sources per series key.
func sourceCoverage(cfg config.SourcesConfig) map[string][]string {
	reg, err := providers.NewRegistry(cfg)
	if err != nil {
		return nil
	}
	coverage := reg.Coverage()
	out := make(map[string][]string, len(coverage))
	for _, key := range reg.Series() {
		out[string(key)] = coverage[key]
	}
	return out
}

// handleGetConfig returns the running configuration without secrets.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, NewConfigResponse(s.cfg))
}

// handleGetConfigKeys returns the status of all secrets.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, config.CheckSecrets(s.cfg))
}
