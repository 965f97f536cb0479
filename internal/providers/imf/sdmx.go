package imf

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

type sdmxDataResponse struct {
	Data sdmxData `json:"data"`
}

type sdmxData struct {
	Structures []sdmxStructure `json:"structures"`
	Structure  *sdmxStructure  `json:"structure"` // SDMX-JSON 1.0
	DataSets   []sdmxDataSet   `json:"dataSets"`
}

type sdmxStructure struct {
	Dimensions struct {
		Observation []sdmxDimension `json:"observation"`
	} `json:"dimensions"`
}

type sdmxDimension struct {
	ID     string `json:"id"`
	Values []struct {
		ID string `json:"id"`
	} `json:"values"`
}

type sdmxDataSet struct {
	Series map[string]sdmxSeries `json:"series"`
}

type sdmxSeries struct {
	Observations map[string][]any `json:"observations"`
}

// ParseSDMXJSON extracts the observations of the first dataset. Observation
// keys index the TIME_PERIOD dimension of the structure; without a structure
// the keys are taken as period labels. Labels such as "2020-M01" are
// normalized to "2020-01". Missing or non-numeric values are skipped.
func ParseSDMXJSON(body []byte) ([]series.Observation, error) {
	var resp sdmxDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &provider.ParseError{Source: sourceName, Detail: "json", Err: err}
	}
	if len(resp.Data.DataSets) == 0 {
		return nil, &provider.ParseError{Source: sourceName, Detail: "no dataSets"}
	}
	periods := timePeriods(resp.Data)

	var obs []series.Observation
	for _, s := range resp.Data.DataSets[0].Series {
		for key, values := range s.Observations {
			if len(values) == 0 {
				continue
			}
			v, ok := parseAnyFloat(values[0])
			if !ok {
				continue
			}
			label := key
			if periods != nil {
				i, err := strconv.Atoi(key)
				if err != nil || i < 0 || i >= len(periods) {
					continue
				}
				label = periods[i]
			}
			obs = append(obs, series.Observation{Period: normalizeLabel(label), Value: v})
		}
	}
	if len(obs) == 0 {
		return nil, &provider.ParseError{Source: sourceName, Detail: "no observations"}
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Period < obs[j].Period })
	return obs, nil
}

// timePeriods returns the TIME_PERIOD values, or nil when the response
// carries no structure.
func timePeriods(d sdmxData) []string {
	st := d.Structure
	if len(d.Structures) > 0 {
		st = &d.Structures[0]
	}
	if st == nil {
		return nil
	}
	for _, dim := range st.Dimensions.Observation {
		if dim.ID != "TIME_PERIOD" {
			continue
		}
		out := make([]string, len(dim.Values))
		for i, v := range dim.Values {
			out[i] = v.ID
		}
		return out
	}
	return nil
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 8 && s[4:6] == "-M" {
		return s[:4] + "-" + s[6:]
	}
	return s
}

func parseAnyFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "NaN" || s == "NA" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
