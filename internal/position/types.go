// Package position executes ladder signals against a cash account and
// records the resulting trades and daily valuations.
package position

import (
	"time"

	"github.com/newthinker/ladder/internal/signal"
	"github.com/shopspring/decimal"
)

// TradeKind is the action recorded by a Trade.
type TradeKind string

const (
	// TradeEnter opens a stage.
	TradeEnter TradeKind = "ENTER"
	// TradeExit closes a stage completely.
	TradeExit TradeKind = "EXIT"
	// TradeReduce sells part of a stage.
	TradeReduce TradeKind = "REDUCE"
)

// Trade is one executed action. The trade log is append-only.
type Trade struct {
	Date  time.Time `json:"date"`
	Kind  TradeKind `json:"kind"`
	Stage int       `json:"stage"`
	// Shares is negative for shares sold.
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	// Value is the unsigned cash amount of the trade.
	Value     decimal.Decimal `json:"value"`
	CashAfter decimal.Decimal `json:"cash_after"`
}

// Closes reports whether the trade sells shares.
func (t Trade) Closes() bool {
	return t.Kind == TradeExit || t.Kind == TradeReduce
}

// DailySnapshot is the end-of-bar state of the account.
type DailySnapshot struct {
	Date           time.Time       `json:"date"`
	Close          decimal.Decimal `json:"close"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Cash           decimal.Decimal `json:"cash"`
	PositionValue  decimal.Decimal `json:"position_value"`
	// Exposure is PositionValue divided by initial capital.
	Exposure         float64 `json:"exposure"`
	TotalShares      int64   `json:"total_shares"`
	WeightedAvgEntry float64 `json:"weighted_avg_entry"`
}

// StagePosition is one ladder slot.
type StagePosition struct {
	Stage      int             `json:"stage"`
	Open       bool            `json:"open"`
	Shares     int64           `json:"shares"`
	EntryPrice decimal.Decimal `json:"entry_price"`
}

// Rejection records an entry that was signaled but not executed. It is a
// normal strategy outcome, not an error.
type Rejection struct {
	Date   time.Time `json:"date"`
	Stage  int       `json:"stage"`
	Reason string    `json:"reason"`
}

// History is the output of a full run.
type History struct {
	Trades     []Trade         `json:"trades"`
	Snapshots  []DailySnapshot `json:"snapshots"`
	Rejections []Rejection     `json:"rejections"`
}

// Config holds capital and exposure constraints.
type Config struct {
	InitialCapital float64
	StageWeights   [signal.NumStages]float64
	// MaxExposure caps position value / initial capital after an entry.
	MaxExposure float64
	// ReduceTrigger is the exposure above which shares are sold at or above
	// break-even.
	ReduceTrigger float64
	// ReduceFraction is the share of total holdings sold by a reduction.
	ReduceFraction float64
	// ExitGainPct is the minimum gain over the weighted average entry price
	// required to honor an exit signal.
	ExitGainPct float64
}

// DefaultConfig returns the canonical constraints.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		StageWeights:   signal.DefaultLadderConfig().StageWeights,
		MaxExposure:    0.90,
		ReduceTrigger:  0.75,
		ReduceFraction: 0.10,
		ExitGainPct:    20,
	}
}
