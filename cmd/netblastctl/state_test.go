package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "worker.json")
	stateFile := NewStateFile(path)

	missing, err := stateFile.Load()
	require.NoError(t, err)
	assert.False(t, missing.IsPresent())

	saved := &WorkerState{
		BrokerURL:    "http://broker:8080",
		WorkerID:     "wk_01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Cookie:       "0123456789abcdef0123",
		Hostname:     "node1",
		RegisteredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, stateFile.Save(saved))

	loaded, err := stateFile.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded.MustGet())

	require.NoError(t, stateFile.Remove())
	require.NoError(t, stateFile.Remove(), "removing twice is fine")

	gone, err := stateFile.Load()
	require.NoError(t, err)
	assert.False(t, gone.IsPresent())
}
