package signal

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFromCloses(closes ...float64) core.Series {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(core.Series, len(closes))
	for i, c := range closes {
		s[i] = core.PricePoint{Date: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

func entries(signals []Signal) map[int][]int {
	out := make(map[int][]int)
	for i, s := range signals {
		if len(s.Entry) > 0 {
			out[i] = s.Entry
		}
	}
	return out
}

func TestLadder_TwoStagesThenExit(t *testing.T) {
	series := seriesFromCloses(100, 84, 75.6, 97)
	signals := NewLadder(DefaultLadderConfig()).Generate(series)

	require.Len(t, signals, len(series))
	assert.Empty(t, signals[0].Entry)
	assert.Equal(t, []int{1}, signals[1].Entry)
	assert.Equal(t, []int{2}, signals[2].Entry)
	assert.True(t, signals[3].Exit, "97 >= 1.2 * 80.4 should exit")
	assert.Empty(t, signals[3].Entry)

	for i, s := range signals {
		assert.Equal(t, series[i].Date, s.Date)
	}
}

func TestLadder_NoExitBelowGainThreshold(t *testing.T) {
	// Weighted average of 84 and 75.6 is 80.4; 96 is only +19.4%.
	series := seriesFromCloses(100, 84, 75.6, 96)
	signals := NewLadder(DefaultLadderConfig()).Generate(series)

	assert.False(t, signals[3].Exit)
}

func TestLadder_ExitGainIsNotRounded(t *testing.T) {
	// Stage 1 at 84 exits at 84 * 1.2 = 100.8. 100.79664 rounds to +20.00%
	// but is still below the threshold.
	signals := NewLadder(DefaultLadderConfig()).Generate(seriesFromCloses(100, 84, 100.79664))
	assert.False(t, signals[2].Exit)

	signals = NewLadder(DefaultLadderConfig()).Generate(seriesFromCloses(100, 84, 100.8))
	assert.True(t, signals[2].Exit)
}

func TestLadder_ExitAndEntryNeverCompete(t *testing.T) {
	cfg := DefaultLadderConfig()
	ladder := NewLadder(cfg)

	for _, seed := range []int64{1, 7, 42, 2024} {
		rng := rand.New(rand.NewSource(seed))
		closes := make([]float64, 500)
		price := 100.0
		for i := range closes {
			price *= 1 + rng.NormFloat64()*0.04
			closes[i] = price
		}
		series := seriesFromCloses(closes...)

		var state LadderState
		for i, bar := range series {
			before := state
			var sig Signal
			state, sig = ladder.Step(state, series, i)
			if before.ActiveStage == 0 {
				continue
			}

			// Checking entries first would find no entry on an exit bar and no
			// exit on an entry bar, so both orders yield the same signal.
			avg := before.WeightedAverageEntry(cfg.StageWeights)
			last := before.StagePrices[before.ActiveStage-1]
			if sig.Exit {
				assert.Greater(t, bar.Close, last, "seed %d bar %d", seed, i)
			}
			if len(sig.Entry) > 0 {
				assert.False(t, indicator.GainReached(bar.Close, avg, cfg.ExitGainPct), "seed %d bar %d", seed, i)
			}
		}
	}
}

func TestLadder_MonotonicRiseNeverEnters(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	signals := NewLadder(DefaultLadderConfig()).Generate(seriesFromCloses(closes...))

	for i, s := range signals {
		assert.False(t, s.HasAction(), "bar %d should carry no action", i)
	}
}

func TestLadder_AllFiveStages(t *testing.T) {
	series := seriesFromCloses(100, 84, 75.6, 70.308, 63.2772, 56.94948, 40)
	signals := NewLadder(DefaultLadderConfig()).Generate(series)

	assert.Equal(t, map[int][]int{
		1: {1},
		2: {2},
		3: {3},
		4: {4},
		5: {5},
	}, entries(signals), "a sixth drop must not open anything")
}

func TestLadder_OneStagePerBar(t *testing.T) {
	// 60 is far below both stage thresholds but may only advance one stage.
	series := seriesFromCloses(100, 84, 60)
	signals := NewLadder(DefaultLadderConfig()).Generate(series)

	assert.Equal(t, []int{2}, signals[2].Entry)
}

func TestLadder_FirstEntryUsesRollingWindow(t *testing.T) {
	cfg := DefaultLadderConfig()
	cfg.Lookback = 3

	// The 100 high falls out of the 3-bar window before the close reaches 84.
	series := seriesFromCloses(100, 95, 95, 90, 84)
	signals := NewLadder(cfg).Generate(series)

	assert.Empty(t, entries(signals), "84 is only 11.58% below the 3-bar high of 95")

	cfg.Lookback = 20
	signals = NewLadder(cfg).Generate(series)
	assert.Equal(t, map[int][]int{4: {1}}, entries(signals))
}

func TestLadder_ReentersAfterExit(t *testing.T) {
	series := seriesFromCloses(100, 84, 101, 101, 85)
	signals := NewLadder(DefaultLadderConfig()).Generate(series)

	assert.True(t, signals[2].Exit)
	assert.Equal(t, map[int][]int{1: {1}, 4: {1}}, entries(signals))
}

func TestLadder_NoLookahead(t *testing.T) {
	series := seriesFromCloses(100, 90, 84, 80, 75, 72, 90, 101, 99, 85)
	ladder := NewLadder(DefaultLadderConfig())
	full := ladder.Generate(series)

	for n := 1; n <= len(series); n++ {
		prefix := ladder.Generate(series[:n])
		assert.Equal(t, full[:n], prefix, "prefix of length %d", n)
	}
}

func TestLadder_StepMatchesGenerate(t *testing.T) {
	series := seriesFromCloses(100, 84, 75.6, 70.308, 97)
	ladder := NewLadder(DefaultLadderConfig())
	full := ladder.Generate(series)

	var state LadderState
	for i := range series {
		var sig Signal
		state, sig = ladder.Step(state, series, i)
		assert.Equal(t, full[i], sig, "bar %d", i)
	}
	assert.Equal(t, LadderState{}, state)
}

func TestLadderState_WeightedAverageEntry(t *testing.T) {
	weights := DefaultLadderConfig().StageWeights

	flat := LadderState{}
	assert.Zero(t, flat.WeightedAverageEntry(weights))

	two := LadderState{ActiveStage: 2, StagePrices: [NumStages]float64{84, 75.6}}
	assert.InDelta(t, (0.20*84+0.15*75.6)/0.35, two.WeightedAverageEntry(weights), 1e-9)

	// Stale prices past ActiveStage are ignored.
	stale := LadderState{ActiveStage: 1, StagePrices: [NumStages]float64{84, 10, 10}}
	assert.InDelta(t, 84, stale.WeightedAverageEntry(weights), 1e-9)
}

func TestNew(t *testing.T) {
	g, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, StrategyLadder, g.Name())

	cfg := DefaultConfig()
	cfg.Name = StrategyBands
	g, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, StrategyBands, g.Name())

	cfg.Name = "martingale"
	_, err = New(cfg)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestSignal_Enters(t *testing.T) {
	s := Signal{Entry: []int{2, 3}}
	assert.True(t, s.Enters(3))
	assert.False(t, s.Enters(1))
	assert.True(t, s.HasAction())
	assert.False(t, Signal{}.HasAction())
}
