package oecd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

// ParseSDMXCSV extracts (TIME_PERIOD, OBS_VALUE) pairs from SDMX CSV
// records; the first record is the header. Rows with an empty or
// non-numeric value are skipped. Output is sorted by period label.
func ParseSDMXCSV(records [][]string) ([]series.Observation, error) {
	if len(records) == 0 {
		return nil, &provider.ParseError{Source: sourceName, Detail: "empty document"}
	}

	header := records[0]
	timeIdx := findColumn(header, "TIME_PERIOD")
	obsIdx := findColumn(header, "OBS_VALUE")
	if timeIdx < 0 || obsIdx < 0 {
		return nil, &provider.ParseError{
			Source: sourceName,
			Detail: fmt.Sprintf("missing TIME_PERIOD/OBS_VALUE columns in %v", header),
		}
	}

	var obs []series.Observation
	for _, row := range records[1:] {
		if len(row) <= obsIdx || len(row) <= timeIdx {
			continue
		}
		period := strings.TrimSpace(row[timeIdx])
		val, ok := parseFloat(row[obsIdx])
		if period == "" || !ok {
			continue
		}
		obs = append(obs, series.Observation{Period: period, Value: val})
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Period < obs[j].Period })
	return obs, nil
}

// findColumn returns the index of a column name in the header, or -1.
func findColumn(header []string, name string) int {
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// parseFloat parses an SDMX observation value.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NaN" || s == "NA" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
