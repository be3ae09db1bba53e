package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/newthinker/ladder/internal/core"
)

// CSV file names written by WriteCSV
const (
	TradesFile    = "trades.csv"
	PositionsFile = "positions.csv"
	SignalsFile   = "signals.csv"
)

// WriteCSV writes the trade log with PnL, the daily ledger and the signal
// stream of r into dir, creating it if needed.
func WriteCSV(r *Result, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer, *Result) error
	}{
		{TradesFile, WriteTrades},
		{PositionsFile, WritePositions},
		{SignalsFile, WriteSignals},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), r, f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, r *Result, write func(io.Writer, *Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteTrades writes one row per executed trade with its realized PnL
func WriteTrades(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"date", "kind", "stage", "shares", "price", "value", "cash_after", "pnl", "pnl_pct",
	})
	if r.Ledger != nil {
		for _, t := range r.Ledger.Trades {
			_ = cw.Write([]string{
				t.Date.Format(core.DateLayout), string(t.Kind), strconv.Itoa(t.Stage),
				strconv.FormatInt(t.Shares, 10), t.Price.String(), t.Value.StringFixed(2),
				t.CashAfter.StringFixed(2), t.PnL.StringFixed(2), formatF(t.PnLPct),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePositions writes one row per bar of the daily ledger
func WritePositions(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"date", "close", "portfolio_value", "cash", "position_value", "exposure", "total_shares",
		"weighted_avg_entry", "daily_return", "cumulative_return", "drawdown_pct",
	})
	if r.Ledger != nil {
		for _, d := range r.Ledger.Days {
			_ = cw.Write([]string{
				d.Date.Format(core.DateLayout), d.Close.String(), d.PortfolioValue.StringFixed(2),
				d.Cash.StringFixed(2), d.PositionValue.StringFixed(2), formatF(d.Exposure),
				strconv.FormatInt(d.TotalShares, 10), formatF(d.WeightedAvgEntry),
				formatF(d.DailyReturn), formatF(d.CumulativeReturn), formatF(d.Drawdown),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSignals writes one row per bar of the signal stream. Entry stages are
// joined with "|".
func WriteSignals(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "entry_stages", "exit", "reason"})
	for _, s := range r.Signals {
		stages := make([]string, len(s.Entry))
		for i, st := range s.Entry {
			stages[i] = strconv.Itoa(st)
		}
		_ = cw.Write([]string{
			s.Date.Format(core.DateLayout), strings.Join(stages, "|"), strconv.FormatBool(s.Exit), s.Reason,
		})
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
