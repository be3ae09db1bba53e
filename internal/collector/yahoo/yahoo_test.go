package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/ladder/internal/collector"
	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahoo_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New()
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SPXL", "SPXL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	y := New()
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"SPXL", "BRK-B", "^GSPC", "600519.SH"}
	for _, s := range valid {
		if err := validateSymbol(s); err != nil {
			t.Errorf("validateSymbol(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "SP XL", "../etc", strings.Repeat("A", 21)}
	for _, s := range invalid {
		if err := validateSymbol(s); err == nil {
			t.Errorf("validateSymbol(%q) expected error", s)
		}
	}
}

// 2024-01-02 and 2024-01-03 14:30 UTC
const chartOK = `{"chart":{"result":[{"meta":{"symbol":"SPXL","currency":"USD","exchangeTimezoneName":"UTC"},
"timestamp":[1704205800,1704292200],
"indicators":{"quote":[{"open":[100,101],"high":[102,103],"low":[99,98],"close":[101,99.5],"volume":[1000,2000]}]}}],
"error":null}}`

const chartNull = `{"chart":{"result":[{"meta":{"symbol":"SPXL"},
"timestamp":[1704205800,1704292200],
"indicators":{"quote":[{"open":[100,null],"high":[102,103],"low":[99,98],"close":[101,99.5],"volume":[1000,2000]}]}}],
"error":null}}`

const chartError = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.String()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &path
}

func TestYahoo_FetchHistory(t *testing.T) {
	srv, path := newTestServer(t, http.StatusOK, chartOK)
	reg := metrics.NewRegistry()
	y := New(WithBaseURL(srv.URL), WithRateLimit(100, 1), WithMetrics(reg))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	series, err := y.FetchHistory(context.Background(), "SPXL", start, end)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, 100.0, series[0].Open)
	assert.Equal(t, 103.0, series[1].High)
	assert.Equal(t, 98.0, series[1].Low)
	assert.Equal(t, 99.5, series[1].Close)
	assert.NoError(t, series.Validate())

	assert.True(t, strings.HasPrefix(*path, "/SPXL?"), "path %s", *path)
	assert.Contains(t, *path, "interval=1d")
	assert.Contains(t, *path, "period1=1704067200")
}

func TestYahoo_FetchHistory_FiltersRange(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, chartOK)
	y := New(WithBaseURL(srv.URL), WithRateLimit(100, 1))

	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	series, err := y.FetchHistory(context.Background(), "SPXL", day, day)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 99.5, series[0].Close)
}

func TestYahoo_FetchHistory_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"null price", http.StatusOK, chartNull, core.ErrFieldMissing},
		{"api error", http.StatusOK, chartError, core.ErrCollectorFailed},
		{"http status", http.StatusTooManyRequests, "", core.ErrCollectorFailed},
		{"bad json", http.StatusOK, "{", core.ErrCollectorFailed},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, core.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			y := New(WithBaseURL(srv.URL), WithRateLimit(100, 1))

			_, err := y.FetchHistory(context.Background(), "SPXL", time.Time{}, time.Time{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestYahoo_FetchHistory_InvalidSymbol(t *testing.T) {
	y := New(WithBaseURL("http://127.0.0.1:0"))
	_, err := y.FetchHistory(context.Background(), "bad symbol", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestYahoo_FetchHistory_CancelledContext(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, chartOK)
	y := New(WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := y.FetchHistory(ctx, "SPXL", time.Time{}, time.Time{})
	assert.Error(t, err)
}
