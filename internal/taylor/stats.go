package taylor

import (
	"math"

	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// Stats compares the actual and implied rates on the dates where both are
// present. With fewer than two such dates every statistic is NaN.
// Correlation is NaN when either side is constant.
func Stats(actual, implied series.Series) models.FitStats {
	var a, m []float64
	for _, p := range actual.DropAbsent() {
		av := p.Value.V
		iv, ok := implied.Lookup(p.Date).Get()
		if !ok {
			continue
		}
		a = append(a, av)
		m = append(m, iv)
	}

	n := float64(len(a))
	if len(a) < 2 {
		return models.NaNFitStats()
	}

	var sumSq, sumAbs, sum float64
	for i := range a {
		d := a[i] - m[i]
		sumSq += d * d
		sumAbs += math.Abs(d)
		sum += d
	}

	return models.FitStats{
		RMSE:          utils.Round(math.Sqrt(sumSq/n), 3),
		MAE:           utils.Round(sumAbs/n, 3),
		Correlation:   utils.Round(pearson(a, m), 3),
		MeanDeviation: utils.Round(sum/n, 3),
	}
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}
