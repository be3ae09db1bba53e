package signal

import (
	"fmt"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/indicator"
)

// LadderConfig parameterizes the staged entry ladder.
type LadderConfig struct {
	// Lookback is the rolling-high window in bars.
	Lookback int
	// FirstEntryDrawdownPct opens stage 1 once the close is at least this far
	// below the rolling high.
	FirstEntryDrawdownPct float64
	// StageDropsPct[k] opens stage k+2 once the close has dropped this far
	// from the entry price of stage k+1.
	StageDropsPct [NumStages - 1]float64
	// StageWeights are the capital fractions of the five stages. They also
	// weight the average entry price used by the exit rule.
	StageWeights [NumStages]float64
	// ExitGainPct closes the ladder once the close is this far above the
	// weighted average entry price.
	ExitGainPct float64
}

// DefaultLadderConfig returns the canonical ladder parameters.
func DefaultLadderConfig() LadderConfig {
	return LadderConfig{
		Lookback:              20,
		FirstEntryDrawdownPct: 15,
		StageDropsPct:         [NumStages - 1]float64{10, 7, 10, 10},
		StageWeights:          [NumStages]float64{0.20, 0.15, 0.20, 0.20, 0.15},
		ExitGainPct:           20,
	}
}

// LadderState is the mutable part of the ladder. ActiveStage is 0 when flat;
// StagePrices[k] holds the entry price of stage k+1 for every stage up to
// ActiveStage.
type LadderState struct {
	ActiveStage int
	StagePrices [NumStages]float64
}

// open returns which slots hold a recorded entry price.
func (s LadderState) open() [NumStages]bool {
	var open [NumStages]bool
	for i := 0; i < s.ActiveStage && i < NumStages; i++ {
		open[i] = true
	}
	return open
}

// WeightedAverageEntry returns the stage-weighted average of the recorded
// entry prices, or 0 when flat.
func (s LadderState) WeightedAverageEntry(weights [NumStages]float64) float64 {
	return WeightedAverage(s.StagePrices, weights, s.open())
}

// Ladder is the stateful staged-entry strategy.
type Ladder struct {
	cfg LadderConfig
}

// NewLadder creates a ladder generator.
func NewLadder(cfg LadderConfig) *Ladder {
	return &Ladder{cfg: cfg}
}

func (l *Ladder) Name() string {
	return StrategyLadder
}

// Generate runs the ladder over the whole series from a flat state.
func (l *Ladder) Generate(series core.Series) []Signal {
	highs := series.Highs()
	signals := make([]Signal, len(series))

	var state LadderState
	for i := range series {
		state, signals[i] = l.step(state, series, highs, i)
	}
	return signals
}

// Step applies one bar to state and returns the new state with the bar's
// signal. Only bars up to and including i are read.
func (l *Ladder) Step(state LadderState, series core.Series, i int) (LadderState, Signal) {
	return l.step(state, series, series[:i+1].Highs(), i)
}

func (l *Ladder) step(state LadderState, series core.Series, highs []float64, i int) (LadderState, Signal) {
	bar := series[i]
	sig := Signal{Date: bar.Date}

	// An exit supersedes entry evaluation for the bar. Entries need a close
	// below the last stage price and exits a close above it, so the order of
	// the two checks does not change the signals.
	if state.ActiveStage >= 1 {
		avg := state.WeightedAverageEntry(l.cfg.StageWeights)
		if indicator.GainReached(bar.Close, avg, l.cfg.ExitGainPct) {
			sig.Exit = true
			sig.Reason = fmt.Sprintf("close %.2f is %.2f%% above weighted entry %.2f",
				bar.Close, indicator.PctChange(bar.Close, avg), avg)
			return LadderState{}, sig
		}
	}

	switch {
	case state.ActiveStage == 0:
		high := indicator.WindowMax(highs, i, l.cfg.Lookback)
		if dd := indicator.PctChange(bar.Close, high); dd <= -l.cfg.FirstEntryDrawdownPct {
			state.ActiveStage = 1
			state.StagePrices[0] = bar.Close
			sig.Entry = []int{1}
			sig.Reason = fmt.Sprintf("close %.2f is %.2f%% below rolling high %.2f", bar.Close, dd, high)
		}
	case state.ActiveStage < NumStages:
		ref := state.StagePrices[state.ActiveStage-1]
		threshold := l.cfg.StageDropsPct[state.ActiveStage-1]
		if drop := indicator.PctChange(bar.Close, ref); drop <= -threshold {
			state.StagePrices[state.ActiveStage] = bar.Close
			state.ActiveStage++
			sig.Entry = []int{state.ActiveStage}
			sig.Reason = fmt.Sprintf("close %.2f is %.2f%% below stage %d entry %.2f",
				bar.Close, drop, state.ActiveStage-1, ref)
		}
	}

	return state, sig
}
