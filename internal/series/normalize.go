package series

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// Change is a policy-rate decision effective from Date.
type Change struct {
	Date civil.Date `json:"date"`
	Rate float64    `json:"rate"`
}

// Observation is a raw index observation keyed by the source's period label.
type Observation struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// Resolver maps a parsed period date onto the series' canonical date.
type Resolver func(civil.Date) civil.Date

// ToMonthEnd resolves a date to its month-end.
func ToMonthEnd(d civil.Date) civil.Date { return utils.MonthEnd(d) }

// ToQuarterEnd resolves a date to the last day of its quarter.
func ToQuarterEnd(d civil.Date) civil.Date { return utils.QuarterEnd(d.Year, utils.QuarterOf(d)) }

// FromObservations parses period labels and resolves them to canonical
// dates. The result is sorted; duplicates keep the last occurrence.
func FromObservations(obs []Observation, resolve Resolver) (Series, error) {
	points := make([]Point, 0, len(obs))
	for _, o := range obs {
		d, err := utils.ParsePeriod(o.Period)
		if err != nil {
			return nil, fmt.Errorf("observation %q: %w", o.Period, err)
		}
		points = append(points, Point{Date: resolve(d), Value: Some(o.Value)})
	}
	return FromPoints(points), nil
}

// MonthlyFromChanges turns a change log into a month-end step series: each
// month-end carries the rate in force on that day (or on horizon, for the
// month containing it). Months before epoch and after horizon are dropped.
func MonthlyFromChanges(changes []Change, epoch, horizon civil.Date) Series {
	if len(changes) == 0 {
		return nil
	}
	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	if sorted[0].Date.After(horizon) {
		return nil
	}

	var out Series
	next, current := 0, 0.0
	for _, m := range utils.MonthEnds(sorted[0].Date, horizon) {
		cutoff := m
		if cutoff.After(horizon) {
			cutoff = horizon
		}
		for next < len(sorted) && !sorted[next].Date.After(cutoff) {
			current = sorted[next].Rate
			next++
		}
		out = append(out, Point{Date: m, Value: Some(current)})
	}
	return out.Restrict(epoch)
}

// MonthlyYoY computes year-over-year percentage changes of a month-end index
// series: 100·(v_t / v_{t-12m} − 1). Months without a value twelve months
// earlier, or with a zero base, are dropped, as are months before epoch.
func MonthlyYoY(index Series, epoch civil.Date) Series {
	return yoy(index).Restrict(epoch)
}

// QuarterlyYoYToMonthly computes year-over-year percentage changes of a
// quarter-end index series and spreads each quarter's value over the three
// months of that quarter. Months after the last available quarter carry the
// last value forward; the result spans epoch..horizon where defined.
func QuarterlyYoYToMonthly(index Series, epoch, horizon civil.Date) Series {
	quarterly := yoy(index).Restrict(epoch)
	if len(quarterly) == 0 {
		return nil
	}

	var out Series
	last := None()
	for _, m := range utils.MonthEnds(epoch, horizon) {
		if v := quarterly.Lookup(ToQuarterEnd(m)); v.Valid {
			last = v
		}
		if last.Valid {
			out = append(out, Point{Date: m, Value: last})
		}
	}
	return out
}

// yoy pairs each point with the point twelve months earlier by date, so
// gaps in the input never shift the comparison base.
func yoy(index Series) Series {
	var out Series
	for _, p := range index {
		cur, ok := p.Value.Get()
		if !ok {
			continue
		}
		base, ok := index.Lookup(utils.AddMonths(p.Date, -12)).Get()
		if !ok || base == 0 {
			continue
		}
		out = append(out, Point{Date: p.Date, Value: Some(100 * (cur/base - 1))})
	}
	return out
}
