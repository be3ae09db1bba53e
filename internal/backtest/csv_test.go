package backtest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteTrades(t *testing.T) {
	result, err := Simulate(seriesOf(100, 84, 75.6, 97), DefaultConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, result))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"date", "kind", "stage", "shares", "price", "value", "cash_after", "pnl", "pnl_pct"}, rows[0])
	assert.Equal(t, []string{"2024-01-03", "ENTER", "1", "238", "84", "19992.00", "80008.00", "0.00", "0"}, rows[1])
	assert.Equal(t, "EXIT", rows[3][1])
	assert.Equal(t, "-238", rows[3][3])
	assert.Equal(t, "3094.00", rows[3][7])
}

func TestWritePositionsAndSignals(t *testing.T) {
	result, err := Simulate(seriesOf(100, 84, 75.6, 97), DefaultConfig())
	require.NoError(t, err)

	var positions, signals bytes.Buffer
	require.NoError(t, WritePositions(&positions, result))
	require.NoError(t, WriteSignals(&signals, result))

	posRows := readCSV(t, positions.Bytes())
	require.Len(t, posRows, 5)
	assert.Equal(t, "100000.00", posRows[1][2])
	assert.Equal(t, "107331.20", posRows[4][2])

	sigRows := readCSV(t, signals.Bytes())
	require.Len(t, sigRows, 5)
	assert.Equal(t, "1", sigRows[2][1])
	assert.Equal(t, "2", sigRows[3][1])
	assert.Equal(t, "true", sigRows[4][2])
}

func TestWriteCSV(t *testing.T) {
	result, err := Simulate(seriesOf(100, 84, 75.6, 97), DefaultConfig())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteCSV(result, dir))

	for _, name := range []string{TradesFile, PositionsFile, SignalsFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
}
