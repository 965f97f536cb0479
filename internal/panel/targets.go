package panel

import "cloud.google.com/go/civil"

// DefaultTarget is the inflation target for dates outside every segment.
const DefaultTarget = 2.0

// Segment is an inclusive date range with a constant inflation target.
type Segment struct {
	Start, End civil.Date
	Value      float64
}

// Contains reports whether d lies in [Start, End].
func (s Segment) Contains(d civil.Date) bool {
	return !d.Before(s.Start) && !d.After(s.End)
}

// Targets is the CNB's announced inflation target history, in percent.
var Targets = []Segment{
	{Start: civil.Date{Year: 2000, Month: 1, Day: 1}, End: civil.Date{Year: 2001, Month: 12, Day: 31}, Value: 4.0},
	{Start: civil.Date{Year: 2002, Month: 1, Day: 1}, End: civil.Date{Year: 2009, Month: 12, Day: 31}, Value: 3.0},
	{Start: civil.Date{Year: 2010, Month: 1, Day: 1}, End: civil.Date{Year: 2099, Month: 12, Day: 31}, Value: 2.0},
}

// TargetAt returns the value of the first segment containing d, or
// DefaultTarget.
func TargetAt(d civil.Date) float64 {
	for _, s := range Targets {
		if s.Contains(d) {
			return s.Value
		}
	}
	return DefaultTarget
}
