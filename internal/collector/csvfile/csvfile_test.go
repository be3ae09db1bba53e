package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/ladder/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,100,101,99,100.5,100.5,1000
2024-01-03,100.5,102,100,101.25,101.25,1200
2024-01-04,101,101.5,95,96,96,3000
`

func TestParse(t *testing.T) {
	series, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, 100.0, series[0].Open)
	assert.Equal(t, 102.0, series[1].High)
	assert.Equal(t, 95.0, series[2].Low)
	assert.Equal(t, 96.0, series[2].Close)
	assert.NoError(t, series.Validate())
}

func TestParse_HeaderCaseAndOrder(t *testing.T) {
	in := "close,LOW,date,High,open\n10,9,2024-03-01 00:00:00,11,9.5\n"

	series, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, series, 1)

	p := series[0]
	assert.Equal(t, 9.5, p.Open)
	assert.Equal(t, 11.0, p.High)
	assert.Equal(t, 9.0, p.Low)
	assert.Equal(t, 10.0, p.Close)
	assert.Equal(t, 2024, p.Date.Year())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty input", "", core.ErrNoData},
		{"missing close column", "Date,Open,High,Low\n2024-01-02,1,1,1\n", core.ErrFieldMissing},
		{"empty value", "Date,Open,High,Low,Close\n2024-01-02,1,1,,1\n", core.ErrFieldMissing},
		{"non-numeric value", "Date,Open,High,Low,Close\n2024-01-02,1,1,1,n/a\n", core.ErrFieldMissing},
		{"bad date", "Date,Open,High,Low,Close\nyesterday,1,1,1,1\n", core.ErrFieldMissing},
		{"short row", "Date,Open,High,Low,Close\n2024-01-02,1,1\n", core.ErrFieldMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_ErrorNamesLine(t *testing.T) {
	in := "Date,Open,High,Low,Close\n2024-01-02,1,1,1,1\n2024-01-03,1,1,1,\n"

	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "close is empty")
}

func TestLoader_FetchHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	l := New(path)
	assert.Equal(t, "csv", l.Name())

	all, err := l.FetchHistory(context.Background(), "SPXL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	ranged, err := l.FetchHistory(context.Background(), "SPXL", start, start)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 101.25, ranged[0].Close)
}

func TestLoader_Errors(t *testing.T) {
	_, err := New("").FetchHistory(context.Background(), "SPXL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(filepath.Join(t.TempDir(), "missing.csv")).FetchHistory(context.Background(), "SPXL", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrCollectorFailed)
}
