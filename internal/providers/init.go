// Package providers builds the live sources of every series and registers
// them, in priority order, with a source registry.
package providers

import (
	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/providers/cnb"
	"github.com/seenimoa/cnbtaylor/internal/providers/eurostat"
	"github.com/seenimoa/cnbtaylor/internal/providers/imf"
	"github.com/seenimoa/cnbtaylor/internal/providers/oecd"
)

// RegisterAllTo registers the live sources described by cfg to reg.
// Primary sources are always registered; the CNB HTML table, the OECD
// sources and the IMF CPI source only when cfg.Secondary is set.
func RegisterAllTo(reg *provider.Registry, cfg config.SourcesConfig) error {
	opts := provider.ClientOptions{Timeout: cfg.Timeout, UserAgent: cfg.UserAgent}

	// --- Repo rate ---
	sources := []provider.Source{cnb.NewRateLogSource(cfg.CNB.RateLogURL, opts)}
	if cfg.Secondary {
		sources = append(sources, cnb.NewRateTableSource(cfg.CNB.RateTableURL, opts))
	}

	// --- CPI and GDP (Eurostat, then OECD, then IMF for CPI) ---
	sources = append(sources,
		eurostat.NewCPISource(cfg.Eurostat.BaseURL, opts),
		eurostat.NewGDPSource(cfg.Eurostat.BaseURL, opts),
	)
	if cfg.Secondary {
		sources = append(sources,
			oecd.NewCPISource(cfg.OECD.BaseURL, opts),
			oecd.NewGDPSource(cfg.OECD.BaseURL, opts),
			imf.NewCPISource(cfg.IMF.BaseURL, opts),
		)
	}

	for _, s := range sources {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry populated from cfg.
func NewRegistry(cfg config.SourcesConfig) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if err := RegisterAllTo(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}
