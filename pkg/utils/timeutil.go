package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Prague is the CNB's home time zone (CET/CEST).
var Prague *time.Location

func init() {
	var err error
	Prague, err = time.LoadLocation("Europe/Prague")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		Prague = time.FixedZone("CET", 1*60*60)
	}
}

// NowPrague returns the current time in Prague.
func NowPrague() time.Time {
	return time.Now().In(Prague)
}

// Today returns today's calendar date in Prague.
func Today() civil.Date {
	return civil.DateOf(NowPrague())
}

// MonthEnd returns the last calendar day of d's month.
func MonthEnd(d civil.Date) civil.Date {
	return lastDay(d.Year, d.Month)
}

// QuarterEnd returns the last calendar day of quarter q (1-4) of year.
func QuarterEnd(year, q int) civil.Date {
	return lastDay(year, time.Month(q*3))
}

// QuarterOf returns the quarter (1-4) containing d.
func QuarterOf(d civil.Date) int {
	return (int(d.Month)-1)/3 + 1
}

// AddMonths shifts d by n months and returns the month-end of the result.
func AddMonths(d civil.Date, n int) civil.Date {
	// Day 1 avoids time.Date normalizing e.g. Jan 31 + 1 month into March.
	t := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return lastDay(t.Year(), t.Month())
}

// MonthEnds returns every month-end date from the month of from through the
// month of to, inclusive.
func MonthEnds(from, to civil.Date) []civil.Date {
	start, end := MonthEnd(from), MonthEnd(to)
	if start.After(end) {
		return nil
	}
	var out []civil.Date
	for d := start; !d.After(end); d = AddMonths(d, 1) {
		out = append(out, d)
	}
	return out
}

// FormatMonth renders d as "YYYY-MM".
func FormatMonth(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// ParseMonth parses "YYYY-MM" (or a full ISO date) into that month's first day.
func ParseMonth(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) == 7 {
		s += "-01"
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return civil.Date{Year: d.Year, Month: d.Month, Day: 1}, nil
}

// ParsePeriod parses the period labels used by statistical agencies and the
// CNB: "2023-05" and "2023M05" (month), "2023-Q1" and "2023Q1" (quarter),
// "2023-05-17" and "20230517" (day). Month and quarter labels resolve to
// their last calendar day; day labels are returned as-is.
func ParsePeriod(label string) (civil.Date, error) {
	s := strings.TrimSpace(label)

	// "2023-Q1" / "2023Q1"
	if i := strings.Index(s, "Q"); i >= 4 {
		year, err1 := strconv.Atoi(strings.TrimSuffix(s[:i], "-"))
		q, err2 := strconv.Atoi(s[i+1:])
		if err1 != nil || err2 != nil || q < 1 || q > 4 {
			return civil.Date{}, fmt.Errorf("invalid quarter label %q", label)
		}
		return QuarterEnd(year, q), nil
	}

	// "2023M05"
	if len(s) == 7 && s[4] == 'M' {
		s = s[:4] + "-" + s[5:]
	}

	switch len(s) {
	case 7:
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid month label %q", label)
		}
		return lastDay(t.Year(), t.Month()), nil
	case 8:
		t, err := time.Parse("20060102", s)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid date label %q", label)
		}
		return civil.DateOf(t), nil
	case 10:
		d, err := civil.ParseDate(s)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid date label %q", label)
		}
		return d, nil
	}
	// Timestamps written by other tools ("2023-05-31T00:00:00").
	if len(s) > 10 && s[10] == 'T' {
		return ParsePeriod(s[:10])
	}
	return civil.Date{}, fmt.Errorf("unrecognized period label %q", label)
}

func lastDay(year int, month time.Month) civil.Date {
	t := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(t)
}
