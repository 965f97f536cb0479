package models

import (
	"encoding/json"
	"math"

	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// Parameter ranges of the inertial Taylor rule.
const (
	RhoMin, RhoMax     = 0.0, 0.99
	RStarMin, RStarMax = -2.0, 5.0
	WeightMin          = 0.0
	WeightMax          = 3.0
)

// RuleParams are the parameters of the inertial Taylor rule
//
//	i_t = ρ·i_{t-1} + (1-ρ)·[r* + π_t + α·(π_t − π*_t) + β·g_t]
type RuleParams struct {
	Rho   float64 `json:"rho"   validate:"gte=0,lte=0.99"` // inertia
	RStar float64 `json:"rstar" validate:"gte=-2,lte=5"`   // neutral real rate, %
	Alpha float64 `json:"alpha" validate:"gte=0,lte=3"`    // inflation-gap weight
	Beta  float64 `json:"beta"  validate:"gte=0,lte=3"`    // output-growth weight
}

// DefaultRuleParams returns the parameters used when calibration is not possible.
func DefaultRuleParams() RuleParams {
	return RuleParams{Rho: 0.80, RStar: 1.5, Alpha: 1.5, Beta: 0.5}
}

// Clamp returns p with every field limited to its declared range.
func (p RuleParams) Clamp() RuleParams {
	return RuleParams{
		Rho:   utils.Clamp(p.Rho, RhoMin, RhoMax),
		RStar: utils.Clamp(p.RStar, RStarMin, RStarMax),
		Alpha: utils.Clamp(p.Alpha, WeightMin, WeightMax),
		Beta:  utils.Clamp(p.Beta, WeightMin, WeightMax),
	}
}

// InRange reports whether every field lies in its declared closed interval.
func (p RuleParams) InRange() bool {
	return p == p.Clamp()
}

// FitStats measures how closely the implied rate tracks the actual rate.
// All fields are NaN when fewer than two paired observations exist.
type FitStats struct {
	RMSE          float64 `json:"rmse"`
	MAE           float64 `json:"mae"`
	Correlation   float64 `json:"correlation"`
	MeanDeviation float64 `json:"mean_deviation"`
}

// MarshalJSON renders NaN fields as null.
func (s FitStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]*float64{
		"rmse":           finite(s.RMSE),
		"mae":            finite(s.MAE),
		"correlation":    finite(s.Correlation),
		"mean_deviation": finite(s.MeanDeviation),
	})
}

// NaNFitStats returns the all-NaN statistics value.
func NaNFitStats() FitStats {
	nan := math.NaN()
	return FitStats{RMSE: nan, MAE: nan, Correlation: nan, MeanDeviation: nan}
}

// CacheInfo describes a cached snapshot for status reporting.
type CacheInfo struct {
	Exists    bool     `json:"exists"`
	AgeHours  *float64 `json:"age_hours"`
	Timestamp *float64 `json:"timestamp,omitempty"` // epoch seconds
}

// DateRange is an inclusive "YYYY-MM" range; nil ends mean no data.
type DateRange struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// DataStatus is the payload of the status query.
type DataStatus struct {
	RepoCache     CacheInfo `json:"repo_cache"`
	CPICache      CacheInfo `json:"cpi_cache"`
	GDPCache      CacheInfo `json:"gdp_cache"`
	Observations  int       `json:"observations"`
	DateRange     DateRange `json:"date_range"`
	ServerTime    string    `json:"server_time"`
	DataAvailable bool      `json:"data_available"`
	LastRefresh   string    `json:"last_refresh,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// finite returns nil for NaN/Inf, a pointer to v otherwise.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Nullable converts an optional value into a JSON-friendly pointer.
func Nullable(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return finite(v)
}
