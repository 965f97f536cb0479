// Package eurostat implements Eurostat dissemination API sources.
// Data is sourced from https://ec.europa.eu/eurostat/api/dissemination/
// using JSON-stat responses. No API key required.
package eurostat

import (
	"context"
	"net/url"
	"strings"

	"github.com/seenimoa/cnbtaylor/internal/provider"
)

const sourceName = "eurostat"

// Source fetches one Eurostat dataset filtered to a single series.
type Source struct {
	provider.BaseSource
	url string
}

// NewSource creates a source for dataset with the given dimension filters.
func NewSource(key provider.SeriesKey, baseURL, dataset string, filters url.Values, opts provider.ClientOptions) *Source {
	return &Source{
		BaseSource: provider.NewBaseSource(sourceName, key, opts),
		url:        strings.TrimRight(baseURL, "/") + "/" + dataset + "?" + filters.Encode(),
	}
}

// NewCPISource returns the HICP monthly index for Czechia (2015 = 100).
// Dataset: prc_hicp_midx, geo=CZ, unit=I15, coicop=CP00, freq=M
func NewCPISource(baseURL string, opts provider.ClientOptions) *Source {
	return NewSource(provider.SeriesCPI, baseURL, "prc_hicp_midx", url.Values{
		"geo":    {"CZ"},
		"unit":   {"I15"},
		"coicop": {"CP00"},
		"freq":   {"M"},
	}, opts)
}

// NewGDPSource returns quarterly real GDP for Czechia, seasonally and
// calendar adjusted, chain-linked volumes (2010) in national currency.
// Dataset: namq_10_gdp, geo=CZ, unit=CLV10_MNAC, s_adj=SCA, na_item=B1GQ, freq=Q
func NewGDPSource(baseURL string, opts provider.ClientOptions) *Source {
	return NewSource(provider.SeriesGDP, baseURL, "namq_10_gdp", url.Values{
		"geo":     {"CZ"},
		"unit":    {"CLV10_MNAC"},
		"s_adj":   {"SCA"},
		"na_item": {"B1GQ"},
		"freq":    {"Q"},
	}, opts)
}

// URL returns the request URL.
func (s *Source) URL() string { return s.url }

// Fetch downloads and parses the dataset.
func (s *Source) Fetch(ctx context.Context) (*provider.Raw, error) {
	body, err := s.GetBytes(ctx, s.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	obs, err := ParseJSONStat(body)
	if err != nil {
		return nil, err
	}
	raw := s.NewRaw()
	raw.Observations = obs
	return raw, nil
}
