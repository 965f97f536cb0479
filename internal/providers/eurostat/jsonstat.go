package eurostat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

// jsonStat is the subset of a JSON-stat dataset the parser reads.
type jsonStat struct {
	Dimension map[string]struct {
		Category struct {
			Index json.RawMessage `json:"index"`
		} `json:"category"`
	} `json:"dimension"`
	Value json.RawMessage `json:"value"`
}

// ParseJSONStat extracts the time dimension of a single-series JSON-stat
// document. The time category index maps period labels to positions, either
// as an object ({"2020-01": 0}) or as an ordered array of labels; values are
// keyed by position, either as an object ({"0": 101.2}) or as a dense array.
// Positions without a value are omitted. Output is sorted by label.
func ParseJSONStat(body []byte) ([]series.Observation, error) {
	var doc jsonStat
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &provider.ParseError{Source: sourceName, Detail: "json", Err: err}
	}

	timeDim, ok := doc.Dimension["time"]
	if !ok || len(timeDim.Category.Index) == 0 {
		return nil, &provider.ParseError{Source: sourceName, Detail: "missing dimension.time.category.index"}
	}
	if len(doc.Value) == 0 || bytes.Equal(doc.Value, []byte("null")) {
		return nil, &provider.ParseError{Source: sourceName, Detail: "missing value"}
	}

	index, err := decodeIndex(timeDim.Category.Index)
	if err != nil {
		return nil, &provider.ParseError{Source: sourceName, Detail: "time index", Err: err}
	}
	values, err := decodeValues(doc.Value)
	if err != nil {
		return nil, &provider.ParseError{Source: sourceName, Detail: "value", Err: err}
	}

	obs := make([]series.Observation, 0, len(index))
	for label, pos := range index {
		if v, ok := values[pos]; ok {
			obs = append(obs, series.Observation{Period: label, Value: v})
		}
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Period < obs[j].Period })
	return obs, nil
}

func decodeIndex(raw json.RawMessage) (map[string]int, error) {
	var byLabel map[string]int
	if err := json.Unmarshal(raw, &byLabel); err == nil {
		return byLabel, nil
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("neither object nor array: %w", err)
	}
	byLabel = make(map[string]int, len(labels))
	for i, l := range labels {
		byLabel[l] = i
	}
	return byLabel, nil
}

func decodeValues(raw json.RawMessage) (map[int]float64, error) {
	out := make(map[int]float64)

	var sparse map[string]*float64
	if err := json.Unmarshal(raw, &sparse); err == nil {
		for k, v := range sparse {
			if v == nil {
				continue
			}
			pos, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("position %q: %w", k, err)
			}
			out[pos] = *v
		}
		return out, nil
	}

	var dense []*float64
	if err := json.Unmarshal(raw, &dense); err != nil {
		return nil, fmt.Errorf("neither object nor array: %w", err)
	}
	for i, v := range dense {
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}
