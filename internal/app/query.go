package app

import (
	"errors"

	"cloud.google.com/go/civil"

	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/internal/taylor"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// Default date filter of the rule query.
const (
	DefaultDateFrom = "2000-01"
	DefaultDateTo   = "2026-12"
)

// Query errors.
var (
	ErrEmptyRange       = errors.New("selected period contains no data")
	ErrParamsOutOfRange = errors.New("rule parameters out of range")
)

// PanelData is the full panel with "YYYY-MM" dates and null gaps.
type PanelData struct {
	Dates      []string       `json:"dates"`
	ActualRate []series.Value `json:"actual_rate"`
	CPI        []series.Value `json:"cpi"`
	GDP        []series.Value `json:"gdp"`
	PiStar     []series.Value `json:"pistar"`
}

// NewPanelData renders p.
func NewPanelData(p *panel.Panel) PanelData {
	return PanelData{
		Dates:      monthLabels(p.Dates),
		ActualRate: rounded(p.Rate),
		CPI:        rounded(p.CPI),
		GDP:        rounded(p.GDP),
		PiStar:     rounded(p.Target),
	}
}

// RuleResult is the implied rate over a filtered panel and its fit.
type RuleResult struct {
	Dates       []string        `json:"dates"`
	ImpliedRate []series.Value  `json:"implied_rate"`
	Stats       models.FitStats `json:"stats"`
}

// FilterMonths restricts p to the inclusive "YYYY-MM" range. When either
// bound does not parse the whole panel is returned.
func FilterMonths(p *panel.Panel, from, to string) *panel.Panel {
	start, err1 := utils.ParseMonth(from)
	end, err2 := utils.ParseMonth(to)
	if err1 != nil || err2 != nil {
		return p
	}
	return p.Filter(start, utils.MonthEnd(end))
}

// EvaluateRule filters p and evaluates the rule with params on the
// remaining months. The recursion restarts at the first filtered month.
// Parameters outside their declared ranges are rejected.
func EvaluateRule(p *panel.Panel, params models.RuleParams, from, to string) (RuleResult, error) {
	if !params.InRange() {
		return RuleResult{}, ErrParamsOutOfRange
	}
	fp := FilterMonths(p, from, to)
	if fp.Empty() {
		return RuleResult{}, ErrEmptyRange
	}

	implied := taylor.Compute(fp, params)
	return RuleResult{
		Dates:       monthLabels(implied.Dates()),
		ImpliedRate: implied.Values(),
		Stats:       taylor.Stats(fp.ActualRate(), implied),
	}, nil
}

func monthLabels(dates []civil.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = utils.FormatMonth(d)
	}
	return out
}

func rounded(vs []series.Value) []series.Value {
	out := make([]series.Value, len(vs))
	for i, v := range vs {
		out[i] = v.Round(4)
	}
	return out
}
