package taylor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// MinCalibrationRows is the smallest regression sample that is fitted.
const MinCalibrationRows = 20

// minOneMinusRho floors 1−ρ in the reverse transform.
const minOneMinusRho = 0.01

// Report describes one calibration run.
type Report struct {
	// OLS coefficients of i_t = c + ρ̂·i_{t-1} + a·π_t + b·g_t.
	Const   float64 `json:"const"`
	RhoHat  float64 `json:"rho_hat"`
	CPICoef float64 `json:"cpi_coef"`
	GDPCoef float64 `json:"gdp_coef"`

	RSquared     float64 `json:"r_squared"`
	Observations int     `json:"observations"`

	// Err is ErrInsufficientData or ErrNumericalFailure (possibly wrapped)
	// when the default parameters were returned.
	Err error `json:"-"`
}

// Fallback reports whether the defaults were used.
func (r *Report) Fallback() bool { return r.Err != nil }

// MarshalJSON renders a NaN R² as null and adds the fallback reason.
func (r *Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := struct {
		*plain
		RSquared *float64 `json:"r_squared"`
		Fallback string   `json:"fallback,omitempty"`
	}{plain: (*plain)(r), RSquared: models.Nullable(r.RSquared, true)}
	if r.Err != nil {
		out.Fallback = r.Err.Error()
	}
	return json.Marshal(out)
}

// Fields returns the report as log fields.
func (r *Report) Fields() logrus.Fields {
	f := logrus.Fields{"observations": r.Observations}
	if r.Err != nil {
		f["fallback"] = r.Err.Error()
		return f
	}
	f["const"] = utils.Round(r.Const, 3)
	f["rho_hat"] = utils.Round(r.RhoHat, 3)
	f["cpi_coef"] = utils.Round(r.CPICoef, 3)
	f["gdp_coef"] = utils.Round(r.GDPCoef, 3)
	f["r_squared"] = utils.Round(r.RSquared, 3)
	return f
}

// Calibrate estimates rule parameters by OLS on the months where the policy
// rate, its one-month lag, CPI and GDP are all present. With fewer than
// MinCalibrationRows usable months, or when the design is numerically
// singular, it returns models.DefaultRuleParams. The result always lies in
// the declared parameter ranges.
func Calibrate(p *panel.Panel) (models.RuleParams, *Report) {
	report := &Report{RSquared: math.NaN()}

	var (
		xs      []float64 // row-major n×4 design
		ys      []float64
		pistars float64
	)
	for i := 1; i < p.Len(); i++ {
		rate, ok1 := p.Rate[i].Get()
		lag, ok2 := p.Rate[i-1].Get()
		pi, ok3 := p.CPI[i].Get()
		g, ok4 := p.GDP[i].Get()
		pistar, ok5 := p.Target[i].Get()
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		xs = append(xs, 1, lag, pi, g)
		ys = append(ys, rate)
		pistars += pistar
	}
	n := len(ys)
	report.Observations = n

	if n < MinCalibrationRows {
		report.Err = fmt.Errorf("%w: %d usable months, need %d", provider.ErrInsufficientData, n, MinCalibrationRows)
		return models.DefaultRuleParams(), report
	}

	x := mat.NewDense(n, 4, xs)
	y := mat.NewVecDense(n, ys)
	coef, err := solveOLS(x, y)
	if err != nil {
		report.Err = err
		return models.DefaultRuleParams(), report
	}

	c, rhoHat, a, b := coef.AtVec(0), coef.AtVec(1), coef.AtVec(2), coef.AtVec(3)
	report.Const, report.RhoHat, report.CPICoef, report.GDPCoef = c, rhoHat, a, b
	report.RSquared = rSquared(x, y, coef)

	rho := utils.Clamp(rhoHat, models.RhoMin, models.RhoMax)
	omr := math.Max(1-rho, minOneMinusRho)
	alpha := a/omr - 1
	beta := b / omr
	rstar := c/omr + alpha*(pistars/float64(n))

	params := models.RuleParams{Rho: rho, RStar: rstar, Alpha: alpha, Beta: beta}.Clamp()
	return models.RuleParams{
		Rho:   utils.Round(params.Rho, 3),
		RStar: utils.Round(params.RStar, 3),
		Alpha: utils.Round(params.Alpha, 3),
		Beta:  utils.Round(params.Beta, 3),
	}, report
}

// solveOLS solves min ‖x·β − y‖² by QR decomposition. A rank-deficient or
// ill-conditioned design, or non-finite coefficients, is ErrNumericalFailure.
func solveOLS(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var qr mat.QR
	qr.Factorize(x)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, y); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: design condition number %g", provider.ErrNumericalFailure, float64(cond))
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrNumericalFailure, err)
	}
	for i := 0; i < coef.Len(); i++ {
		if v := coef.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", provider.ErrNumericalFailure)
		}
	}
	return &coef, nil
}

// rSquared returns 1 − SSres/SStot, or NaN when y is constant.
func rSquared(x *mat.Dense, y, coef *mat.VecDense) float64 {
	var fitted mat.VecDense
	fitted.MulVec(x, coef)

	n := y.Len()
	mean := mat.Sum(y) / float64(n)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		d := y.AtVec(i) - mean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}
