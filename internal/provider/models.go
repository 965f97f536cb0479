package provider

import (
	"time"

	"github.com/seenimoa/cnbtaylor/internal/series"
)

// SeriesKey names one of the input series. It doubles as the cache key.
type SeriesKey string

const (
	SeriesRepoRate SeriesKey = "repo_rate"
	SeriesCPI      SeriesKey = "cpi"
	SeriesGDP      SeriesKey = "gdp"
)

// AllSeries lists the series in panel order.
func AllSeries() []SeriesKey {
	return []SeriesKey{SeriesRepoRate, SeriesCPI, SeriesGDP}
}

// FallbackFile is the offline dataset for the series and the name of its
// value column.
func (k SeriesKey) FallbackFile() (file, column string) {
	switch k {
	case SeriesRepoRate:
		return "repo_rate.csv", "rate"
	case SeriesCPI:
		return "cpi_index.csv", "index"
	case SeriesGDP:
		return "gdp_index.csv", "index"
	}
	return string(k) + ".csv", "value"
}

// Raw is an unnormalized series as retrieved from a source. A rate log fills
// Changes; a statistical index fills Observations.
type Raw struct {
	Source       string               `json:"source"`
	Series       SeriesKey            `json:"series"`
	Changes      []series.Change      `json:"changes,omitempty"`
	Observations []series.Observation `json:"observations,omitempty"`
	FetchedAt    time.Time            `json:"fetched_at"`
}

// Len returns the number of raw records.
func (r *Raw) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Changes) + len(r.Observations)
}
