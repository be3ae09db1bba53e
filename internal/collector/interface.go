package collector

import (
	"context"
	"time"

	"github.com/newthinker/ladder/internal/core"
)

// Provider defines the interface for daily price sources
type Provider interface {
	// Name identifies the source in logs, metrics and cache keys
	Name() string

	// FetchHistory returns the daily bars of symbol between start and end,
	// inclusive, in chronological order. A zero start or end leaves that
	// side of the range open.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error)
}

// InRange reports whether date falls within [start, end], treating zero
// bounds as open.
func InRange(date, start, end time.Time) bool {
	if !start.IsZero() && date.Before(start) {
		return false
	}
	if !end.IsZero() && date.After(end) {
		return false
	}
	return true
}
