package position

import (
	"fmt"
	"math"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/indicator"
	"github.com/newthinker/ladder/internal/signal"
	"github.com/shopspring/decimal"
)

// Manager converts signals into trades under capital and exposure
// constraints. It is not safe for concurrent use; one Manager belongs to one
// run.
type Manager struct {
	cfg     Config
	capital decimal.Decimal
	cash    decimal.Decimal
	stages  [signal.NumStages]StagePosition

	trades     []Trade
	snapshots  []DailySnapshot
	rejections []Rejection
}

// NewManager creates a Manager holding InitialCapital in cash.
func NewManager(cfg Config) (*Manager, error) {
	if !(cfg.InitialCapital > 0) || math.IsInf(cfg.InitialCapital, 0) {
		return nil, core.WrapError(core.ErrInvalidCapital, fmt.Errorf("initial capital %v", cfg.InitialCapital))
	}

	capital := decimal.NewFromFloat(cfg.InitialCapital)
	m := &Manager{
		cfg:     cfg,
		capital: capital,
		cash:    capital,
	}
	for i := range m.stages {
		m.stages[i].Stage = i + 1
	}
	return m, nil
}

// Run processes every bar with its signal and returns the full history.
func (m *Manager) Run(series core.Series, signals []signal.Signal) (*History, error) {
	if len(series) != len(signals) {
		return nil, fmt.Errorf("got %d signals for %d bars", len(signals), len(series))
	}

	for i, bar := range series {
		m.Process(bar, signals[i])
	}

	return &History{
		Trades:     m.Trades(),
		Snapshots:  m.Snapshots(),
		Rejections: m.Rejections(),
	}, nil
}

// Process applies one bar: a gain-gated exit of every stage, otherwise an
// optional break-even reduction, then the signaled entries, then the daily
// snapshot. It returns the trades executed on the bar.
func (m *Manager) Process(bar core.PricePoint, sig signal.Signal) []Trade {
	price := decimal.NewFromFloat(bar.Close)
	start := len(m.trades)

	avg := m.WeightedAverageEntry()
	if sig.Exit && m.TotalShares() > 0 && indicator.GainReached(bar.Close, avg, m.cfg.ExitGainPct) {
		m.exitAll(bar, price)
	} else if avg > 0 && m.Exposure(price) > m.cfg.ReduceTrigger && bar.Close >= avg {
		m.reduce(bar, price)
	}

	for stage := 1; stage <= signal.NumStages; stage++ {
		if !sig.Enters(stage) || m.stages[stage-1].Open {
			continue
		}
		check := m.CheckEntry(stage, price)
		if !check.Allowed {
			m.rejections = append(m.rejections, Rejection{Date: bar.Date, Stage: stage, Reason: check.Reason})
			continue
		}
		m.enter(bar, stage, price, check)
	}

	m.snapshot(bar, price)

	executed := make([]Trade, len(m.trades)-start)
	copy(executed, m.trades[start:])
	return executed
}

func (m *Manager) enter(bar core.PricePoint, stage int, price decimal.Decimal, check EntryCheck) {
	m.cash = m.cash.Sub(check.Cost)
	m.stages[stage-1] = StagePosition{
		Stage:      stage,
		Open:       true,
		Shares:     check.Shares,
		EntryPrice: price,
	}
	m.record(bar, TradeEnter, stage, check.Shares, price, check.Cost)
}

func (m *Manager) exitAll(bar core.PricePoint, price decimal.Decimal) {
	for i := range m.stages {
		pos := &m.stages[i]
		if !pos.Open || pos.Shares == 0 {
			continue
		}
		proceeds := price.Mul(decimal.NewFromInt(pos.Shares))
		shares := pos.Shares
		m.cash = m.cash.Add(proceeds)
		*pos = StagePosition{Stage: pos.Stage}
		m.record(bar, TradeExit, i+1, -shares, price, proceeds)
	}
}

// reduce sells ReduceFraction of the total holdings, split pro-rata across
// open stages in whole shares. Rounding remainders stay unsold.
func (m *Manager) reduce(bar core.PricePoint, price decimal.Decimal) {
	total := m.TotalShares()
	toSell := int64(math.Floor(float64(total) * m.cfg.ReduceFraction))
	if toSell <= 0 {
		return
	}

	for i := range m.stages {
		pos := &m.stages[i]
		if !pos.Open || pos.Shares == 0 {
			continue
		}
		cut := pos.Shares * toSell / total
		if cut <= 0 {
			continue
		}
		proceeds := price.Mul(decimal.NewFromInt(cut))
		pos.Shares -= cut
		m.cash = m.cash.Add(proceeds)
		if pos.Shares == 0 {
			*pos = StagePosition{Stage: pos.Stage}
		}
		m.record(bar, TradeReduce, i+1, -cut, price, proceeds)
	}
}

func (m *Manager) record(bar core.PricePoint, kind TradeKind, stage int, shares int64, price, value decimal.Decimal) {
	m.trades = append(m.trades, Trade{
		Date:      bar.Date,
		Kind:      kind,
		Stage:     stage,
		Shares:    shares,
		Price:     price,
		Value:     value,
		CashAfter: m.cash,
	})
}

func (m *Manager) snapshot(bar core.PricePoint, price decimal.Decimal) {
	value := m.positionValue(price)
	m.snapshots = append(m.snapshots, DailySnapshot{
		Date:             bar.Date,
		Close:            price,
		PortfolioValue:   m.cash.Add(value),
		Cash:             m.cash,
		PositionValue:    value,
		Exposure:         m.Exposure(price),
		TotalShares:      m.TotalShares(),
		WeightedAvgEntry: m.WeightedAverageEntry(),
	})
}

func (m *Manager) positionValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(m.TotalShares()))
}

// Exposure returns the value of all open stages at price divided by the
// initial capital.
func (m *Manager) Exposure(price decimal.Decimal) float64 {
	exposure, _ := m.positionValue(price).Div(m.capital).Float64()
	return exposure
}

// TotalShares returns the shares held across all stages.
func (m *Manager) TotalShares() int64 {
	var total int64
	for _, pos := range m.stages {
		total += pos.Shares
	}
	return total
}

// WeightedAverageEntry returns the stage-weighted average entry price of the
// open stages, or 0 when flat.
func (m *Manager) WeightedAverageEntry() float64 {
	var prices [signal.NumStages]float64
	var open [signal.NumStages]bool
	for i, pos := range m.stages {
		if pos.Open {
			prices[i], _ = pos.EntryPrice.Float64()
			open[i] = true
		}
	}
	return signal.WeightedAverage(prices, m.cfg.StageWeights, open)
}

// Cash returns the current cash balance.
func (m *Manager) Cash() decimal.Decimal {
	return m.cash
}

// InitialCapital returns the starting capital.
func (m *Manager) InitialCapital() decimal.Decimal {
	return m.capital
}

// Positions returns a copy of the five stage slots.
func (m *Manager) Positions() [signal.NumStages]StagePosition {
	return m.stages
}

// Trades returns a copy of the trade log.
func (m *Manager) Trades() []Trade {
	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Snapshots returns a copy of the daily snapshots.
func (m *Manager) Snapshots() []DailySnapshot {
	out := make([]DailySnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// Rejections returns a copy of the rejected entries.
func (m *Manager) Rejections() []Rejection {
	out := make([]Rejection, len(m.rejections))
	copy(out, m.rejections)
	return out
}
