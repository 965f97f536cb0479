// Package series holds the monthly time-series representation shared by the
// fetch pipeline, the panel builder and the rule engine.
//
// A value that is missing for a date is carried explicitly as an absent
// Value; arithmetic helpers propagate absence instead of producing NaN.
package series

import (
	"encoding/json"
	"math"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// Value is a float that may be absent.
type Value struct {
	V     float64
	Valid bool
}

// Some returns a present value. NaN and ±Inf are treated as absent.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// None returns an absent value.
func None() Value { return Value{} }

// Get returns the value and whether it is present.
func (v Value) Get() (float64, bool) { return v.V, v.Valid }

// Float returns the value, or NaN when absent.
func (v Value) Float() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.V
}

// Round rounds a present value to places decimals.
func (v Value) Round(places int32) Value {
	if !v.Valid {
		return v
	}
	return Some(utils.Round(v.V, places))
}

// MarshalJSON renders absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f == nil {
		*v = None()
		return nil
	}
	*v = Some(*f)
	return nil
}

// Point is one dated observation.
type Point struct {
	Date  civil.Date
	Value Value
}

// Series is an ordered sequence of points with strictly increasing dates.
type Series []Point

// Len returns the number of points.
func (s Series) Len() int { return len(s) }

// Dates returns the date index.
func (s Series) Dates() []civil.Date {
	out := make([]civil.Date, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Values returns the values in index order.
func (s Series) Values() []Value {
	out := make([]Value, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Index returns the position of d, or -1.
func (s Series) Index(d civil.Date) int {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(d) })
	if i < len(s) && s[i].Date == d {
		return i
	}
	return -1
}

// Lookup returns the value at d, absent if d is not in the index.
func (s Series) Lookup(d civil.Date) Value {
	if i := s.Index(d); i >= 0 {
		return s[i].Value
	}
	return None()
}

// Reindex conforms s to dates: values are copied where the date exists and
// absent elsewhere. No extrapolation is performed.
func (s Series) Reindex(dates []civil.Date) Series {
	out := make(Series, len(dates))
	for i, d := range dates {
		out[i] = Point{Date: d, Value: s.Lookup(d)}
	}
	return out
}

// Restrict drops points dated before from.
func (s Series) Restrict(from civil.Date) Series {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(from) })
	return s[i:]
}

// DropAbsent removes points whose value is absent.
func (s Series) DropAbsent() Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if p.Value.Valid {
			out = append(out, p)
		}
	}
	return out
}

// Round returns a copy with every present value rounded to places decimals.
func (s Series) Round(places int32) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Date: p.Date, Value: p.Value.Round(places)}
	}
	return out
}

// Defined returns the number of present values.
func (s Series) Defined() int {
	n := 0
	for _, p := range s {
		if p.Value.Valid {
			n++
		}
	}
	return n
}

// FromPoints sorts points by date and collapses duplicate dates, keeping the
// last occurrence.
func FromPoints(points []Point) Series {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make(Series, 0, len(sorted))
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Date == p.Date {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
