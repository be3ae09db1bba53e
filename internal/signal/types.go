// Package signal turns a daily price series into a per-bar entry/exit
// decision stream.
package signal

import (
	"fmt"
	"slices"
	"time"

	"github.com/newthinker/ladder/internal/core"
)

// NumStages is the number of ladder stages.
const NumStages = 5

// Strategy names accepted by New.
const (
	StrategyLadder = "ladder"
	StrategyBands  = "bands"
)

// Signal is the decision for a single bar. It is produced once per bar and
// never modified afterwards.
type Signal struct {
	Date time.Time `json:"date"`
	// Entry holds the stage labels (1..NumStages) to open on this bar.
	// The ladder emits at most one; the bands strategy may emit several.
	Entry  []int  `json:"entry,omitempty"`
	Exit   bool   `json:"exit"`
	Reason string `json:"reason,omitempty"`
}

// Enters reports whether the signal asks for the given stage to be opened.
func (s Signal) Enters(stage int) bool {
	return slices.Contains(s.Entry, stage)
}

// HasAction reports whether the signal carries an entry or an exit.
func (s Signal) HasAction() bool {
	return s.Exit || len(s.Entry) > 0
}

// Generator produces exactly one Signal per input bar, in input order.
type Generator interface {
	Name() string
	Generate(series core.Series) []Signal
}

// Config selects and parameterizes a generator.
type Config struct {
	Name   string
	Ladder LadderConfig
	Bands  BandsConfig
}

// DefaultConfig returns the canonical ladder configuration.
func DefaultConfig() Config {
	return Config{
		Name:   StrategyLadder,
		Ladder: DefaultLadderConfig(),
		Bands:  DefaultBandsConfig(),
	}
}

// New creates the generator named by cfg.Name.
func New(cfg Config) (Generator, error) {
	switch cfg.Name {
	case StrategyLadder, "":
		return NewLadder(cfg.Ladder), nil
	case StrategyBands:
		return NewBands(cfg.Bands), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown strategy %q", cfg.Name))
	}
}

// WeightedAverage returns sum(w*p)/sum(w) over the slots marked open.
// It returns 0 when no slot is open.
func WeightedAverage(prices, weights [NumStages]float64, open [NumStages]bool) float64 {
	var num, den float64
	for i := 0; i < NumStages; i++ {
		if !open[i] {
			continue
		}
		num += weights[i] * prices[i]
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}
