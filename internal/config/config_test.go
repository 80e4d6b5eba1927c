package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := New(path)

	require.NoError(t, cfg.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, DefaultListen, onDisk["system"]["listen"])
	assert.EqualValues(t, DefaultIntervalMs, onDisk["meter"]["interval_ms"])
	assert.Equal(t, DefaultLogLevel, onDisk["log"]["level"])

	snap := cfg.Snapshot()
	assert.Equal(t, 50*time.Millisecond, snap.Interval)
	assert.Equal(t, 5*time.Second, snap.RescanInterval)
	assert.False(t, snap.PruneRemoved)
	assert.Equal(t, slog.LevelInfo, snap.LogLevel)
}

func TestLoadAppliesDefaultsToMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"meter":{"interval_ms":100,"overrides_path":"names.ini"}}`), 0o600))

	cfg := New(path)
	require.NoError(t, cfg.Load())

	snap := cfg.Snapshot()
	assert.Equal(t, DefaultListen, snap.Listen)
	assert.Equal(t, 100*time.Millisecond, snap.Interval)
	assert.Equal(t, "names.ini", snap.OverridesPath)
	assert.Equal(t, 50, snap.RescanTicks())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"interval too short", `{"meter":{"interval_ms":5}}`, "meter.interval_ms"},
		{"interval too long", `{"meter":{"interval_ms":5000}}`, "meter.interval_ms"},
		{"rescan too short", `{"meter":{"rescan_interval_ms":10}}`, "meter.rescan_interval_ms"},
		{"listen without port", `{"system":{"listen":"localhost"}}`, "system.listen"},
		{"unknown log level", `{"log":{"level":"verbose"}}`, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			err := New(path).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"meter":`), 0o600))

	err := New(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestSetPruneRemovedPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	require.NoError(t, cfg.Load())

	require.NoError(t, cfg.SetPruneRemoved(true))

	reloaded := New(path)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Snapshot().PruneRemoved)
}

func TestDefaultOverridesPath(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	assert.Equal(t, exe+".ini", DefaultOverridesPath())
	assert.Equal(t, exe+".ini", New(filepath.Join(t.TempDir(), "c.json")).Snapshot().OverridesPath)
}

func TestRescanTicks(t *testing.T) {
	tests := []struct {
		interval, rescan time.Duration
		want             int
	}{
		{50 * time.Millisecond, 5 * time.Second, 100},
		{time.Second, time.Second, 1},
		{time.Second, 1500 * time.Millisecond, 1},
		{0, time.Second, 0},
	}

	for _, tt := range tests {
		s := Snapshot{Interval: tt.interval, RescanInterval: tt.rescan}
		assert.Equal(t, tt.want, s.RescanTicks(), "interval=%s rescan=%s", tt.interval, tt.rescan)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
