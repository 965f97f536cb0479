// Package cnb implements the Czech National Bank repo-rate sources.
// The history is published as a "|" separated text file; the FAQ page that
// links it renders the same history as an HTML table.
// No API key required.
package cnb

import (
	"bytes"
	"context"

	"github.com/seenimoa/cnbtaylor/internal/provider"
)

const (
	sourceLog   = "cnb-txt"
	sourceTable = "cnb-html"
)

// RateLogSource fetches the text history file.
type RateLogSource struct {
	provider.BaseSource
	url string
}

// NewRateLogSource creates the primary repo-rate source.
func NewRateLogSource(url string, opts provider.ClientOptions) *RateLogSource {
	return &RateLogSource{
		BaseSource: provider.NewBaseSource(sourceLog, provider.SeriesRepoRate, opts),
		url:        url,
	}
}

// Fetch downloads and parses the history file.
func (s *RateLogSource) Fetch(ctx context.Context) (*provider.Raw, error) {
	body, err := s.GetBytes(ctx, s.url, map[string]string{"Accept": "text/plain"})
	if err != nil {
		return nil, err
	}
	changes, err := ParseRateLog(string(body))
	if err != nil {
		return nil, err
	}
	raw := s.NewRaw()
	raw.Changes = changes
	return raw, nil
}

// RateTableSource scrapes the HTML table.
type RateTableSource struct {
	provider.BaseSource
	url string
}

// NewRateTableSource creates the secondary repo-rate source.
func NewRateTableSource(url string, opts provider.ClientOptions) *RateTableSource {
	return &RateTableSource{
		BaseSource: provider.NewBaseSource(sourceTable, provider.SeriesRepoRate, opts),
		url:        url,
	}
}

// Fetch downloads and parses the FAQ page.
func (s *RateTableSource) Fetch(ctx context.Context) (*provider.Raw, error) {
	body, err := s.GetBytes(ctx, s.url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}
	changes, err := ParseRateTable(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	raw := s.NewRaw()
	raw.Changes = changes
	return raw, nil
}
