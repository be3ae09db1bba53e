package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/ladder/internal/core"
)

// mockProvider for testing
type mockProvider struct {
	name   string
	series core.Series
	err    error
	calls  int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.series, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockProvider{name: "mock"}
	r.Register(mock)

	p, ok := r.Get("mock")
	if !ok {
		t.Fatal("expected to find registered provider")
	}

	if p.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", p.Name())
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "yahoo"})
	r.Register(&mockProvider{name: "csv"})
	r.Register(&mockProvider{name: "csv"})

	names := r.Names()
	if len(names) != 2 || names[0] != "csv" || names[1] != "yahoo" {
		t.Errorf("Names() = %v, want [csv yahoo]", names)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "csv"})

	if _, err := r.Lookup("csv"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err := r.Lookup("bloomberg")
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestInRange(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		date       time.Time
		start, end time.Time
		want       bool
	}{
		{"open range", day(5), time.Time{}, time.Time{}, true},
		{"inside", day(5), day(1), day(10), true},
		{"start inclusive", day(1), day(1), day(10), true},
		{"end inclusive", day(10), day(1), day(10), true},
		{"before start", day(1), day(2), time.Time{}, false},
		{"after end", day(11), time.Time{}, day(10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InRange(tt.date, tt.start, tt.end); got != tt.want {
				t.Errorf("InRange() = %v, want %v", got, tt.want)
			}
		})
	}
}
