// Package oecd implements OECD SDMX sources.
// Data is sourced from https://sdmx.oecd.org/public/rest/data/ using CSV responses.
// No API key required.
package oecd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"net/http"
	"strings"

	"github.com/seenimoa/cnbtaylor/internal/provider"
)

const sourceName = "oecd"

// Dataflows and series keys for Czechia.
const (
	// Consumer prices, all items, index 2015=100, monthly.
	cpiDSD = "OECD.SDD.TPS,DSD_PRICES@DF_PRICES_ALL,1.0"
	cpiKey = "CZE.M.N.CPI.IX._T.N."

	// Quarterly GDP, chain-linked volume, seasonally adjusted.
	gdpDSD = "OECD.SDD.NAD,DSD_NAMAIN1@DF_QNA,1.1"
	gdpKey = "Q..CZE.S1..B1GQ._Z...USD_PPP.LR.LA.T0102"
)

// Source fetches one OECD SDMX series as CSV.
type Source struct {
	provider.BaseSource
	url string
}

// NewSource creates a source for the given dataflow and key.
func NewSource(key provider.SeriesKey, baseURL, dsd, seriesKey, startPeriod string, opts provider.ClientOptions) *Source {
	if opts.Transport == nil {
		// OECD needs legacy TLS support.
		opts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS10, //nolint:gosec // OECD SDMX server requires legacy TLS
			},
		}
	}
	return &Source{
		BaseSource: provider.NewBaseSource(sourceName, key, opts),
		url:        buildURL(baseURL, dsd, seriesKey, startPeriod),
	}
}

// NewCPISource returns the monthly CPI index for Czechia.
func NewCPISource(baseURL string, opts provider.ClientOptions) *Source {
	return NewSource(provider.SeriesCPI, baseURL, cpiDSD, cpiKey, "1998-01", opts)
}

// NewGDPSource returns quarterly real GDP for Czechia.
func NewGDPSource(baseURL string, opts provider.ClientOptions) *Source {
	return NewSource(provider.SeriesGDP, baseURL, gdpDSD, gdpKey, "1998-Q1", opts)
}

// URL returns the request URL.
func (s *Source) URL() string { return s.url }

// Fetch downloads and parses the series.
func (s *Source) Fetch(ctx context.Context) (*provider.Raw, error) {
	body, err := s.GetBytes(ctx, s.url, map[string]string{
		"Accept": "application/vnd.sdmx.data+csv; charset=utf-8",
	})
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &provider.ParseError{Source: sourceName, Detail: "csv", Err: err}
	}

	obs, err := ParseSDMXCSV(records)
	if err != nil {
		return nil, err
	}
	raw := s.NewRaw()
	raw.Observations = obs
	return raw, nil
}

// buildURL constructs an OECD SDMX URL.
func buildURL(baseURL, dsd, key, startPeriod string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + dsd + "/" + key + "?"
	parts := []string{
		"dimensionAtObservation=TIME_PERIOD",
		"detail=dataonly",
	}
	if startPeriod != "" {
		parts = append(parts, "startPeriod="+startPeriod)
	}
	return u + strings.Join(parts, "&")
}
