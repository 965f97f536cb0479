// Package fallback loads the offline datasets used when every live source
// for a series has failed. Each dataset is a CSV file in the data directory
// with a "date" column and one value column.
package fallback

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

const sourceName = "fallback"

// Loader reads offline datasets from a directory.
type Loader struct {
	Dir string
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Load reads the dataset for key. A rate log yields Changes; an index
// yields Observations keyed by the file's date labels. A missing file is
// reported wrapping fs.ErrNotExist.
func (l *Loader) Load(key provider.SeriesKey) (*provider.Raw, error) {
	file, column := key.FallbackFile()
	obs, err := ReadCSV(filepath.Join(l.Dir, file), column)
	if err != nil {
		return nil, err
	}

	raw := &provider.Raw{Source: sourceName, Series: key, FetchedAt: time.Now()}
	if key != provider.SeriesRepoRate {
		raw.Observations = obs
		return raw, nil
	}

	raw.Changes = make([]series.Change, 0, len(obs))
	for _, o := range obs {
		d, err := utils.ParsePeriod(o.Period)
		if err != nil {
			return nil, &provider.ParseError{Source: file, Detail: "date", Err: err}
		}
		raw.Changes = append(raw.Changes, series.Change{Date: d, Rate: o.Value})
	}
	return raw, nil
}

// ReadCSV reads a (date, value) CSV with a header row naming a "date"
// column and valueColumn. Rows with an empty value are skipped.
func ReadCSV(path, valueColumn string) ([]series.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fallback dataset: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &provider.ParseError{Source: name, Detail: "header", Err: err}
	}
	dateIdx, valIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")) {
		case "date":
			dateIdx = i
		case strings.ToLower(valueColumn):
			valIdx = i
		}
	}
	if dateIdx < 0 || valIdx < 0 {
		return nil, &provider.ParseError{
			Source: name,
			Detail: fmt.Sprintf("expected columns date,%s; got %v", valueColumn, header),
		}
	}

	var obs []series.Observation
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &provider.ParseError{Source: name, Detail: fmt.Sprintf("line %d", line), Err: err}
		}
		v := strings.TrimSpace(row[valIdx])
		if v == "" {
			continue
		}
		val, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return nil, &provider.ParseError{Source: name, Detail: fmt.Sprintf("line %d: value", line), Err: err}
		}
		obs = append(obs, series.Observation{Period: strings.TrimSpace(row[dateIdx]), Value: val})
	}
	if len(obs) == 0 {
		return nil, &provider.ParseError{Source: name, Detail: "no rows"}
	}
	return obs, nil
}
