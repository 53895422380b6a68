package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReplayRowsParsesValidCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.csv")
	content := "BTCUSDT,2026-07-29T00:00:00Z,100,10\nBTCUSDT,2026-07-29T00:01:00Z,112,12\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := loadReplayRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTCUSDT", rows[0].symbol)
	assert.Equal(t, 100.0, rows[0].price)
	assert.Equal(t, 112.0, rows[1].price)
}

func TestLoadReplayRowsRejectsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.csv")
	require.NoError(t, os.WriteFile(path, []byte("BTCUSDT,not-a-time,100,10\n"), 0o644))

	_, err := loadReplayRows(path)
	assert.Error(t, err)
}

func TestLoadReplayRowsRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.csv")
	require.NoError(t, os.WriteFile(path, []byte("BTCUSDT,2026-07-29T00:00:00Z,100\n"), 0o644))

	_, err := loadReplayRows(path)
	assert.Error(t, err)
}
