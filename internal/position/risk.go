package position

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EntryCheck represents the outcome of the pre-trade checks for an entry.
type EntryCheck struct {
	// Allowed indicates whether the entry may be executed.
	Allowed bool
	// Reason explains a rejection.
	Reason string
	// Shares is the sized order.
	Shares int64
	// Cost is Shares times the price.
	Cost decimal.Decimal
}

// CheckEntry sizes an entry for stage at price and validates it against cash
// and the exposure cap. Exposure is valued at price for every open stage.
func (m *Manager) CheckEntry(stage int, price decimal.Decimal) EntryCheck {
	if stage < 1 || stage > len(m.stages) {
		return EntryCheck{Reason: fmt.Sprintf("unknown stage %d", stage)}
	}
	if m.stages[stage-1].Open {
		return EntryCheck{Reason: fmt.Sprintf("stage %d already open", stage)}
	}
	if !price.IsPositive() {
		return EntryCheck{Reason: fmt.Sprintf("invalid price %s", price)}
	}

	weight := decimal.NewFromFloat(m.cfg.StageWeights[stage-1])
	shares := m.capital.Mul(weight).Div(price).Floor().IntPart()
	if shares <= 0 {
		return EntryCheck{Reason: fmt.Sprintf("stage %d size rounds to zero shares at %s", stage, price)}
	}
	cost := price.Mul(decimal.NewFromInt(shares))

	if m.cash.LessThan(cost) {
		return EntryCheck{
			Reason: fmt.Sprintf("insufficient cash: %s < %s", m.cash.StringFixed(2), cost.StringFixed(2)),
			Shares: shares,
			Cost:   cost,
		}
	}

	after := m.positionValue(price).Add(cost)
	limit := m.capital.Mul(decimal.NewFromFloat(m.cfg.MaxExposure))
	if after.GreaterThan(limit) {
		exposure, _ := after.Div(m.capital).Float64()
		return EntryCheck{
			Reason: fmt.Sprintf("exposure cap: %.2f%% > %.2f%%", exposure*100, m.cfg.MaxExposure*100),
			Shares: shares,
			Cost:   cost,
		}
	}

	return EntryCheck{Allowed: true, Shares: shares, Cost: cost}
}
