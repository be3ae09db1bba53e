package backtest

import (
	"time"

	"github.com/newthinker/ladder/internal/ledger"
	"github.com/newthinker/ladder/internal/position"
	"github.com/newthinker/ladder/internal/signal"
)

// Config holds the strategy and portfolio parameters of a run
type Config struct {
	Signal   signal.Config
	Position position.Config
}

// DefaultConfig returns the canonical ladder with default constraints
func DefaultConfig() Config {
	return Config{
		Signal:   signal.DefaultConfig(),
		Position: position.DefaultConfig(),
	}
}

// Result holds the complete backtest output
type Result struct {
	Strategy  string           `json:"strategy"`
	Symbol    string           `json:"symbol"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Signals   []signal.Signal  `json:"signals"`
	History   position.History `json:"history"`
	Ledger    *ledger.Stats    `json:"ledger"`
	Metrics   Metrics          `json:"metrics"`
}

// Metrics holds the aggregate performance statistics of a run.
// Percentages are expressed in percent (12.5 means 12.5%).
type Metrics struct {
	Returns  ReturnMetrics   `json:"returns"`
	Drawdown DrawdownMetrics `json:"drawdown"`
	Trades   TradeMetrics    `json:"trades"`
	Exposure ExposureMetrics `json:"exposure"`
}

// ReturnMetrics describes portfolio growth
type ReturnMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"` // annualized stdev of daily returns
	// SharpeRatio is annualized return over volatility with no risk-free
	// rate. It is a naive ratio, not a true Sharpe ratio.
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// DrawdownMetrics describes declines from the running peak (values <= 0)
type DrawdownMetrics struct {
	Max     float64 `json:"max"`
	Average float64 `json:"average"` // mean of the negative days only
	Current float64 `json:"current"`
}

// TradeMetrics summarizes the trade log. Every trade counts, including
// entries, whose PnL is zero.
type TradeMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
}

// ExposureMetrics describes position value as a percentage of initial capital
type ExposureMetrics struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Current float64 `json:"current"`
}
