// Package panel aligns the normalized input series on one monthly index.
//
// A Panel is immutable once built: every method returns a new value and
// callers must not modify the exported slices. It is safe to share across
// goroutines.
package panel

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/seenimoa/cnbtaylor/internal/series"
)

// Column names, as used in exports and the data query.
const (
	ColRate   = "actual_rate"
	ColCPI    = "cpi"
	ColGDP    = "gdp"
	ColTarget = "pistar"
)

// Panel is one row per month-end with the policy rate, CPI YoY, GDP YoY and
// the inflation target.
type Panel struct {
	Dates  []civil.Date
	Rate   []series.Value
	CPI    []series.Value
	GDP    []series.Value
	Target []series.Value
}

// Row is a single month of the panel.
type Row struct {
	Date   civil.Date
	Rate   series.Value
	CPI    series.Value
	GDP    series.Value
	Target series.Value
}

// Build aligns cpi and gdp on the policy-rate index (dates ≥ epoch). Months
// where cpi or gdp has no value are left absent.
func Build(rate, cpi, gdp series.Series, epoch civil.Date) *Panel {
	anchor := rate.Restrict(epoch)
	dates := anchor.Dates()

	p := &Panel{
		Dates:  dates,
		Rate:   anchor.Values(),
		CPI:    cpi.Reindex(dates).Values(),
		GDP:    gdp.Reindex(dates).Values(),
		Target: make([]series.Value, len(dates)),
	}
	for i, d := range dates {
		p.Target[i] = series.Some(TargetAt(d))
	}
	return p
}

// New assembles a panel from columns of equal length with strictly
// increasing dates.
func New(dates []civil.Date, rate, cpi, gdp, target []series.Value) (*Panel, error) {
	n := len(dates)
	if len(rate) != n || len(cpi) != n || len(gdp) != n || len(target) != n {
		return nil, fmt.Errorf("panel: column lengths differ (dates=%d rate=%d cpi=%d gdp=%d target=%d)",
			n, len(rate), len(cpi), len(gdp), len(target))
	}
	for i := 1; i < n; i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, fmt.Errorf("panel: dates not strictly increasing at %s", dates[i])
		}
	}
	return &Panel{Dates: dates, Rate: rate, CPI: cpi, GDP: gdp, Target: target}, nil
}

// Len returns the number of rows.
func (p *Panel) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Dates)
}

// Empty reports whether the panel has no rows.
func (p *Panel) Empty() bool { return p.Len() == 0 }

// Row returns row i.
func (p *Panel) Row(i int) Row {
	return Row{Date: p.Dates[i], Rate: p.Rate[i], CPI: p.CPI[i], GDP: p.GDP[i], Target: p.Target[i]}
}

// First returns the first date.
func (p *Panel) First() (civil.Date, bool) {
	if p.Empty() {
		return civil.Date{}, false
	}
	return p.Dates[0], true
}

// Last returns the last date.
func (p *Panel) Last() (civil.Date, bool) {
	if p.Empty() {
		return civil.Date{}, false
	}
	return p.Dates[len(p.Dates)-1], true
}

// Column returns the named column as a series.
func (p *Panel) Column(name string) (series.Series, error) {
	var vals []series.Value
	switch name {
	case ColRate:
		vals = p.Rate
	case ColCPI:
		vals = p.CPI
	case ColGDP:
		vals = p.GDP
	case ColTarget:
		vals = p.Target
	default:
		return nil, fmt.Errorf("panel: unknown column %q", name)
	}
	out := make(series.Series, len(p.Dates))
	for i, d := range p.Dates {
		out[i] = series.Point{Date: d, Value: vals[i]}
	}
	return out, nil
}

// ActualRate returns the policy-rate column.
func (p *Panel) ActualRate() series.Series {
	s, _ := p.Column(ColRate)
	return s
}

// Filter returns the rows dated within [from, to].
func (p *Panel) Filter(from, to civil.Date) *Panel {
	out := &Panel{}
	for i, d := range p.Dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Rate = append(out.Rate, p.Rate[i])
		out.CPI = append(out.CPI, p.CPI[i])
		out.GDP = append(out.GDP, p.GDP[i])
		out.Target = append(out.Target, p.Target[i])
	}
	return out
}
