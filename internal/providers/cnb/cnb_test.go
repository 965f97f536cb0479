package cnb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/series"
)

const rateLog = "\ufeffVALID_FROM|CZK_REPO_RATES\r\n" +
	"20231221|6,75\r\n" +
	"19951201|11,30\r\n" +
	"\r\n" +
	"20240201|6,25\r\n"

func d(y, m, day int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: day}
}

func TestParseRateLog(t *testing.T) {
	got, err := ParseRateLog(rateLog)
	require.NoError(t, err)
	assert.Equal(t, []series.Change{
		{Date: d(1995, 12, 1), Rate: 11.30},
		{Date: d(2023, 12, 21), Rate: 6.75},
		{Date: d(2024, 2, 1), Rate: 6.25},
	}, got)
}

func TestParseRateLogWithoutHeader(t *testing.T) {
	got, err := ParseRateLog("20000101|5,25\n")
	require.NoError(t, err)
	assert.Equal(t, []series.Change{{Date: d(2000, 1, 1), Rate: 5.25}}, got)
}

func TestParseRateLogErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"three fields", "VALID_FROM|RATE\n20000101|5,25|x\n"},
		{"one field", "VALID_FROM|RATE\n20000101\n"},
		{"bad date after header", "VALID_FROM|RATE\n2000-01-01|5,25\n"},
		{"bad rate", "VALID_FROM|RATE\n20000101|n/a\n"},
		{"header only", "VALID_FROM|RATE\n"},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRateLog(tc.text)
			var pe *provider.ParseError
			assert.True(t, errors.As(err, &pe), "want ParseError, got %v", err)
		})
	}
}

const rateTable = `<html><body>
<h1>Jak se vyvíjela 2T repo sazba ČNB?</h1>
<table>
  <thead><tr><th>Platnost od</th><th>2T repo sazba (%)</th></tr></thead>
  <tbody>
    <tr><td>1.&nbsp;2.&nbsp;2024</td><td>6,25</td></tr>
    <tr><td>21. 12. 2023</td><td>6,75 %</td></tr>
    <tr><td colspan="2">Poznámka: sazby v procentech</td></tr>
    <tr><td>1.12.1995</td><td>11,30</td></tr>
  </tbody>
</table>
</body></html>`

func TestParseRateTable(t *testing.T) {
	got, err := ParseRateTable(strings.NewReader(rateTable))
	require.NoError(t, err)
	assert.Equal(t, []series.Change{
		{Date: d(1995, 12, 1), Rate: 11.30},
		{Date: d(2023, 12, 21), Rate: 6.75},
		{Date: d(2024, 2, 1), Rate: 6.25},
	}, got)
}

func TestParseRateTableNoRows(t *testing.T) {
	_, err := ParseRateTable(strings.NewReader("<html><p>moved</p></html>"))
	var pe *provider.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestRateLogSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(rateLog))
	}))
	defer srv.Close()

	src := NewRateLogSource(srv.URL, provider.ClientOptions{})
	assert.Equal(t, "cnb-txt", src.Name())
	assert.Equal(t, provider.SeriesRepoRate, src.Series())

	raw, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cnb-txt", raw.Source)
	assert.Len(t, raw.Changes, 3)
	assert.Empty(t, raw.Observations)
}

func TestRateLogSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRateLogSource(srv.URL, provider.ClientOptions{}).Fetch(context.Background())
	var he *provider.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusServiceUnavailable, he.StatusCode)
}

func TestRateTableSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rateTable))
	}))
	defer srv.Close()

	raw, err := NewRateTableSource(srv.URL, provider.ClientOptions{}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cnb-html", raw.Source)
	assert.Len(t, raw.Changes, 3)
}
