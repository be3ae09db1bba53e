// Package ledger derives profit-and-loss, return and drawdown series from a
// finished run without re-simulating it.
package ledger

import (
	"time"

	"github.com/newthinker/ladder/internal/position"
	"github.com/shopspring/decimal"
)

// TradePnL is a trade with the profit it realized. Enter trades carry zero.
type TradePnL struct {
	position.Trade
	PnL    decimal.Decimal `json:"pnl"`
	PnLPct float64         `json:"pnl_pct"`
}

// IsWin returns true if the trade realized a profit
func (t TradePnL) IsWin() bool {
	return t.PnL.IsPositive()
}

// IsLoss returns true if the trade realized a loss
func (t TradePnL) IsLoss() bool {
	return t.PnL.IsNegative()
}

// Day is a snapshot with its return and drawdown.
type Day struct {
	position.DailySnapshot
	// DailyReturn is the change in portfolio value from the previous day.
	// It is 0 on the first day.
	DailyReturn      float64         `json:"daily_return"`
	CumulativeReturn float64         `json:"cumulative_return"`
	RunningMax       decimal.Decimal `json:"running_max"`
	// Drawdown is the percentage below RunningMax, always <= 0.
	Drawdown float64 `json:"drawdown"`
}

// Stats is the analysis-ready view of a run.
type Stats struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	Trades         []TradePnL      `json:"trades"`
	Days           []Day           `json:"days"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
}

// State is the portfolio at the last recorded day.
type State struct {
	Date           time.Time       `json:"date"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Cash           decimal.Decimal `json:"cash"`
	Exposure       float64         `json:"exposure"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
}

// Compute builds the ledger from a trade log and the daily snapshots.
// TotalPnL = RealizedPnL + UnrealizedPnL holds exactly.
func Compute(trades []position.Trade, snapshots []position.DailySnapshot, initialCapital decimal.Decimal) *Stats {
	s := &Stats{
		InitialCapital: initialCapital,
		Trades:         tradePnL(trades),
		Days:           days(snapshots),
	}

	for _, t := range s.Trades {
		s.RealizedPnL = s.RealizedPnL.Add(t.PnL)
	}

	final := initialCapital
	if len(snapshots) > 0 {
		final = snapshots[len(snapshots)-1].PortfolioValue
	}
	s.TotalPnL = final.Sub(initialCapital)
	s.UnrealizedPnL = s.TotalPnL.Sub(s.RealizedPnL)

	return s
}

type openLot struct {
	shares int64
	price  decimal.Decimal
}

// tradePnL matches every closing trade to the entry price of its stage.
func tradePnL(trades []position.Trade) []TradePnL {
	out := make([]TradePnL, len(trades))
	open := make(map[int]*openLot)

	for i, t := range trades {
		out[i] = TradePnL{Trade: t}

		switch {
		case t.Kind == position.TradeEnter:
			open[t.Stage] = &openLot{shares: t.Shares, price: t.Price}
		case t.Closes():
			lot, ok := open[t.Stage]
			if !ok {
				continue
			}
			closed := t.Shares
			if closed < 0 {
				closed = -closed
			}
			out[i].PnL = t.Price.Sub(lot.price).Mul(decimal.NewFromInt(closed))
			if lot.price.IsPositive() {
				pct, _ := t.Price.Div(lot.price).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Float64()
				out[i].PnLPct = pct
			}

			lot.shares += t.Shares
			if lot.shares <= 0 {
				delete(open, t.Stage)
			}
		}
	}

	return out
}

func days(snapshots []position.DailySnapshot) []Day {
	out := make([]Day, len(snapshots))
	growth := 1.0
	var peak decimal.Decimal

	for i, snap := range snapshots {
		d := Day{DailySnapshot: snap}

		if i > 0 {
			prev := snapshots[i-1].PortfolioValue
			if prev.IsPositive() {
				d.DailyReturn, _ = snap.PortfolioValue.Div(prev).Sub(decimal.NewFromInt(1)).Float64()
			}
			growth *= 1 + d.DailyReturn
			d.CumulativeReturn = growth - 1
		}

		if i == 0 || snap.PortfolioValue.GreaterThan(peak) {
			peak = snap.PortfolioValue
		}
		d.RunningMax = peak
		if peak.IsPositive() {
			d.Drawdown, _ = snap.PortfolioValue.Sub(peak).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
		}

		out[i] = d
	}

	return out
}

// Current returns the state at the last day, or nil when there are no days.
func (s *Stats) Current() *State {
	if s == nil || len(s.Days) == 0 {
		return nil
	}
	last := s.Days[len(s.Days)-1]
	return &State{
		Date:           last.Date,
		PortfolioValue: last.PortfolioValue,
		Cash:           last.Cash,
		Exposure:       last.Exposure,
		RealizedPnL:    s.RealizedPnL,
		UnrealizedPnL:  s.UnrealizedPnL,
		TotalPnL:       s.TotalPnL,
	}
}

// FinalValue returns the last portfolio value, or the initial capital when
// there are no days.
func (s *Stats) FinalValue() decimal.Decimal {
	if len(s.Days) == 0 {
		return s.InitialCapital
	}
	return s.Days[len(s.Days)-1].PortfolioValue
}
