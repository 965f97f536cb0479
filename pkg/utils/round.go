package utils

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places using banker's
// rounding (half to even) on the exact binary value of v, so 2.675, stored
// as 2.67499999..., rounds to 2.67. NaN and ±Inf are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := exactDecimal(v).RoundBank(places).Float64()
	return f
}

// exactDecimal returns the decimal expansion of v without loss:
// v = m·2^-k = m·5^k·10^-k for an integer mantissa m.
func exactDecimal(v float64) decimal.Decimal {
	frac, exp := math.Frexp(v)
	m := big.NewInt(int64(math.Ldexp(frac, 53)))
	k := 53 - exp
	if k <= 0 {
		return decimal.NewFromBigInt(m.Lsh(m, uint(-k)), 0)
	}
	pow := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(k)), nil)
	return decimal.NewFromBigInt(pow.Mul(pow, m), int32(-k))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
