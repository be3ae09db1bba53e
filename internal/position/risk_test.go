package position

import (
	"testing"

	"github.com/newthinker/ladder/internal/signal"
	"github.com/stretchr/testify/assert"
)

func TestManager_CheckEntry(t *testing.T) {
	m := newManager(t, DefaultConfig())
	bar := seriesFromCloses(84)[0]

	check := m.CheckEntry(1, dec("84"))
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Reason)
	assert.Equal(t, int64(238), check.Shares)
	assert.True(t, check.Cost.Equal(dec("19992")))

	m.Process(bar, signal.Signal{Date: bar.Date, Entry: []int{1}})

	tests := []struct {
		name   string
		stage  int
		price  string
		reason string
	}{
		{"already open", 1, "84", "already open"},
		{"stage zero", 0, "84", "unknown stage"},
		{"stage six", 6, "84", "unknown stage"},
		{"non-positive price", 2, "0", "invalid price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := m.CheckEntry(tt.stage, dec(tt.price))
			assert.False(t, check.Allowed)
			assert.Contains(t, check.Reason, tt.reason)
		})
	}
}
