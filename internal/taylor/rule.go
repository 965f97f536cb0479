// Package taylor evaluates and calibrates the inertial Taylor rule
//
//	i_t = ρ·i_{t-1} + (1−ρ)·[r* + π_t + α·(π_t − π*_t) + β·g_t]
//
// where i_{t-1} is always the observed policy rate of the previous month,
// never the rule's own previous output.
package taylor

import (
	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/pkg/models"
)

// Precision is the number of decimals kept in implied rates.
const Precision = 4

// Target returns the non-inertial part of the rule for one month.
func Target(params models.RuleParams, pi, g, pistar float64) float64 {
	return params.RStar + pi + params.Alpha*(pi-pistar) + params.Beta*g
}

// Compute returns the implied policy rate for every month of p. Months
// without CPI or GDP have no implied rate. The result is aligned to the
// panel's index.
func Compute(p *panel.Panel, params models.RuleParams) series.Series {
	rho := params.Rho
	out := make(series.Series, p.Len())

	for i, d := range p.Dates {
		out[i] = series.Point{Date: d}

		pi, ok1 := p.CPI[i].Get()
		g, ok2 := p.GDP[i].Get()
		pistar, ok3 := p.Target[i].Get()
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		target := Target(params, pi, g, pistar)

		var implied float64
		if i == 0 {
			if actual, ok := p.Rate[0].Get(); ok {
				implied = (1-rho)*target + rho*actual
			} else {
				implied = rho*target + (1-rho)*target
			}
		} else {
			if prev, ok := p.Rate[i-1].Get(); ok {
				implied = rho*prev + (1-rho)*target
			} else {
				implied = (1 - rho) * target
			}
		}
		out[i].Value = series.Some(implied).Round(Precision)
	}
	return out
}
