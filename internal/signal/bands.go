package signal

import (
	"fmt"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/indicator"
)

// BandsConfig parameterizes the stateless drawdown-band strategy.
type BandsConfig struct {
	// Lookback is the rolling-high window in bars.
	Lookback int
	// DrawdownsPct[k] triggers stage k+1 whenever the close is at least this
	// far below the rolling high.
	DrawdownsPct [NumStages]float64
	// ExitLookback is the distance in bars of the close-to-close return used
	// by the exit rule.
	ExitLookback int
	// ExitReturnPct triggers an exit when that return reaches this value.
	ExitReturnPct float64
}

// DefaultBandsConfig returns the band thresholds of the stateless variant.
func DefaultBandsConfig() BandsConfig {
	return BandsConfig{
		Lookback:      20,
		DrawdownsPct:  [NumStages]float64{15, 25, 32, 42, 52},
		ExitLookback:  20,
		ExitReturnPct: 20,
	}
}

// Bands fires each stage independently from the current drawdown and exits
// on a trailing return. It keeps no state between bars.
type Bands struct {
	cfg BandsConfig
}

// NewBands creates a bands generator.
func NewBands(cfg BandsConfig) *Bands {
	return &Bands{cfg: cfg}
}

func (b *Bands) Name() string {
	return StrategyBands
}

func (b *Bands) Generate(series core.Series) []Signal {
	rollingHigh := indicator.RollingMax(series.Highs(), b.cfg.Lookback)
	closes := series.Closes()
	signals := make([]Signal, len(series))

	for i, bar := range series {
		sig := Signal{Date: bar.Date}

		dd := indicator.PctChange(bar.Close, rollingHigh[i])
		for k, band := range b.cfg.DrawdownsPct {
			if dd <= -band {
				sig.Entry = append(sig.Entry, k+1)
			}
		}
		if len(sig.Entry) > 0 {
			sig.Reason = fmt.Sprintf("close %.2f is %.2f%% below rolling high %.2f", bar.Close, dd, rollingHigh[i])
		}

		if lb := b.cfg.ExitLookback; lb > 0 && i >= lb {
			if indicator.GainReached(bar.Close, closes[i-lb], b.cfg.ExitReturnPct) {
				sig.Exit = true
				sig.Reason = fmt.Sprintf("%d-bar return %.2f%%", lb, indicator.PctChange(bar.Close, closes[i-lb]))
			}
		}

		signals[i] = sig
	}

	return signals
}
