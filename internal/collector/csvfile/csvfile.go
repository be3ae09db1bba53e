// Package csvfile loads daily price bars from a CSV file with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/ladder/internal/collector"
	"github.com/newthinker/ladder/internal/core"
)

// requiredColumns are matched case-insensitively against the header
var requiredColumns = []string{"date", "open", "high", "low", "close"}

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Loader reads a price series from a CSV file on disk
type Loader struct {
	path string
}

// New creates a loader for the file at path
func New(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) Name() string {
	return "csv"
}

// FetchHistory reads the file and returns the bars within [start, end].
// The symbol is not checked; the file is assumed to hold one instrument.
func (l *Loader) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	if l.path == "" {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("csv path not set"))
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("opening %s: %w", l.path, err))
	}
	defer f.Close()

	series, err := Parse(f)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(core.Series, 0, len(series))
	for _, p := range series {
		if collector.InRange(p.Date, start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Parse reads bars from r. The header must name Date, Open, High, Low and
// Close columns; other columns are ignored. Any missing column or empty or
// non-numeric value fails with core.ErrFieldMissing, naming the line.
func Parse(r io.Reader) (core.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, core.ErrNoData
	}
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("reading header: %w", err))
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var series core.Series
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("line %d: %w", line, err))
		}

		p, err := parseRecord(record, index)
		if err != nil {
			return nil, core.WrapError(core.ErrFieldMissing, fmt.Errorf("line %d: %w", line, err))
		}
		series = append(series, p)
	}

	return series, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, core.WrapError(core.ErrFieldMissing,
			fmt.Errorf("required columns not found: %s", strings.Join(missing, ", ")))
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int) (core.PricePoint, error) {
	field := func(col string) (string, error) {
		i := index[col]
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			return "", fmt.Errorf("%s is empty", col)
		}
		return strings.TrimSpace(record[i]), nil
	}

	raw, err := field("date")
	if err != nil {
		return core.PricePoint{}, err
	}
	date, err := parseDate(raw)
	if err != nil {
		return core.PricePoint{}, err
	}

	var values [4]float64
	for i, col := range requiredColumns[1:] {
		raw, err := field(col)
		if err != nil {
			return core.PricePoint{}, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.PricePoint{}, fmt.Errorf("%s is not numeric: %q", col, raw)
		}
		values[i] = v
	}

	return core.PricePoint{
		Date:  date,
		Open:  values[0],
		High:  values[1],
		Low:   values[2],
		Close: values[3],
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("date is not parseable: %q", raw)
}
