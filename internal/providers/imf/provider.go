// Package imf implements the IMF SDMX consumer-price source.
// Data is sourced from https://api.imf.org/external/sdmx/3.0/ using
// SDMX-JSON responses. No API key required.
package imf

import (
	"context"
	"strings"

	"github.com/seenimoa/cnbtaylor/internal/provider"
)

const sourceName = "imf"

// CPI dataflow and series key for Czechia: all items, index, monthly.
const (
	cpiFlow = "IMF/CPI"
	cpiKey  = "CZE.CPI._T.IX.M"
)

// Source fetches one IMF SDMX series.
type Source struct {
	provider.BaseSource
	url string
}

// NewSource creates a source for flow ("AGENCY/DATAFLOW") and series key.
func NewSource(key provider.SeriesKey, baseURL, flow, seriesKey, startPeriod string, opts provider.ClientOptions) *Source {
	return &Source{
		BaseSource: provider.NewBaseSource(sourceName, key, opts),
		url:        buildSDMXURL(baseURL, flow, seriesKey, startPeriod),
	}
}

// NewCPISource returns the monthly CPI index for Czechia.
func NewCPISource(baseURL string, opts provider.ClientOptions) *Source {
	return NewSource(provider.SeriesCPI, baseURL, cpiFlow, cpiKey, "1998-01", opts)
}

// URL returns the request URL.
func (s *Source) URL() string { return s.url }

// Fetch downloads and parses the series.
func (s *Source) Fetch(ctx context.Context) (*provider.Raw, error) {
	body, err := s.GetBytes(ctx, s.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	obs, err := ParseSDMXJSON(body)
	if err != nil {
		return nil, err
	}
	raw := s.NewRaw()
	raw.Observations = obs
	return raw, nil
}

// buildSDMXURL constructs an IMF SDMX 3.0 data URL.
func buildSDMXURL(baseURL, flow, key, startPeriod string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + flow + "/+/" + key +
		"?dimensionAtObservation=TIME_PERIOD&detail=dataonly&includeHistory=false"
	if startPeriod != "" {
		u += "&c[TIME_PERIOD]=ge:" + startPeriod
	}
	return u
}
