package core

import (
	"fmt"
	"math"
	"time"
)

// PricePoint represents one daily bar of a single instrument
type PricePoint struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Series is an ordered sequence of daily bars, oldest first
type Series []PricePoint

// Closes returns the closing prices of the series
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Highs returns the high prices of the series
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.High
	}
	return out
}

// Validate checks the preconditions a series must meet before it can be
// simulated: non-empty, every field present and positive, dates strictly
// increasing.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrNoData
	}

	for i, p := range s {
		if p.Date.IsZero() {
			return WrapError(ErrFieldMissing, fmt.Errorf("bar %d: date", i))
		}
		fields := []struct {
			name  string
			value float64
		}{
			{"open", p.Open},
			{"high", p.High},
			{"low", p.Low},
			{"close", p.Close},
		}
		for _, f := range fields {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				return WrapError(ErrFieldMissing, fmt.Errorf("bar %d (%s): %s", i, p.Date.Format(DateLayout), f.name))
			}
			if f.value <= 0 {
				return WrapError(ErrInvalidPrice, fmt.Errorf("bar %d (%s): %s = %v", i, p.Date.Format(DateLayout), f.name, f.value))
			}
		}
		if i > 0 && !p.Date.After(s[i-1].Date) {
			return WrapError(ErrNonChronological, fmt.Errorf("bar %d (%s) does not follow %s",
				i, p.Date.Format(DateLayout), s[i-1].Date.Format(DateLayout)))
		}
	}

	return nil
}

// DateLayout is the calendar date format used for bars, configs and reports
const DateLayout = "2006-01-02"
