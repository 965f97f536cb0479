package cnb

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

const bom = "\ufeff"

// ParseRateLog parses the CNB repo-rate history file:
//
//	VALID_FROM|CZK_REPO_RATES
//	19951201|11,30
//	19960621|12,40
//
// Rows are "|" separated with a YYYYMMDD date and a decimal-comma rate. The
// header row is optional; blank lines are ignored. Any other row that is not
// exactly (date, rate) fails the whole document.
func ParseRateLog(text string) ([]series.Change, error) {
	text = strings.TrimPrefix(text, bom)

	var changes []series.Change
	first := true
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 2 {
			return nil, &provider.ParseError{
				Source: sourceLog,
				Detail: fmt.Sprintf("line %d: expected 2 fields, got %d", n+1, len(fields)),
			}
		}

		date, err := parseCompactDate(fields[0])
		if err != nil {
			if first {
				first = false
				continue // header
			}
			return nil, &provider.ParseError{Source: sourceLog, Detail: fmt.Sprintf("line %d: date", n+1), Err: err}
		}
		first = false

		rate, err := parseDecimal(fields[1])
		if err != nil {
			return nil, &provider.ParseError{Source: sourceLog, Detail: fmt.Sprintf("line %d: rate", n+1), Err: err}
		}
		changes = append(changes, series.Change{Date: date, Rate: rate})
	}

	if len(changes) == 0 {
		return nil, &provider.ParseError{Source: sourceLog, Detail: "no rate changes"}
	}
	sortChanges(changes)
	return changes, nil
}

// ParseRateTable parses the HTML rendering of the same history: a table
// whose rows hold a "d.m.yyyy" date and a decimal-comma rate. Rows that do
// not match (headers, notes) are skipped.
func ParseRateTable(r io.Reader) ([]series.Change, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &provider.ParseError{Source: sourceTable, Detail: "html", Err: err}
	}

	var changes []series.Change
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		date, err := parseDottedDate(cells.Eq(0).Text())
		if err != nil {
			return
		}
		rate, err := parseDecimal(cells.Eq(1).Text())
		if err != nil {
			return
		}
		changes = append(changes, series.Change{Date: date, Rate: rate})
	})

	if len(changes) == 0 {
		return nil, &provider.ParseError{Source: sourceTable, Detail: "no rate rows in any table"}
	}
	sortChanges(changes)
	return changes, nil
}

func parseCompactDate(s string) (civil.Date, error) {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

// parseDottedDate accepts "1.12.1995" and "1. 12. 1995" (including no-break spaces).
func parseDottedDate(s string) (civil.Date, error) {
	s = strings.Join(strings.Fields(s), "")
	t, err := time.Parse("2.1.2006", s)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

// parseDecimal parses "11,30", "11.30" and "11,30 %".
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSuffix(strings.Join(strings.Fields(s), ""), "%")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func sortChanges(changes []series.Change) {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Date.Before(changes[j].Date) })
}
