package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

func record(id string) types.DeviceRecord {
	return types.DeviceRecord{NativeID: id, ContainerID: "audio-" + id, DefaultName: "Speakers", DisplayName: "Speakers"}
}

func TestLoggerWritesAndReadsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	l, err := NewLogger(path)
	require.NoError(t, err)

	require.NoError(t, l.LogDevice(DeviceDiscovered, record("DEV1"), ""))
	require.NoError(t, l.LogDevice(DeviceDiscovered, record("DEV2"), ""))
	require.NoError(t, l.LogDevice(EnumerationFailed, types.DeviceRecord{}, "E_FAIL"))
	require.NoError(t, l.LogDevice(DeviceRenamed, record("DEV1"), "Kitchen"))
	require.NoError(t, l.Close())

	events, more, err := ReadLast(path, 10, 0, FilterAll)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, events, 4)
	assert.Equal(t, DeviceRenamed, events[0].Type)
	assert.Equal(t, "Kitchen", events[0].Message)
	assert.Equal(t, "DEV1", events[0].Details.NativeID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Nil(t, events[1].Details)

	system, _, err := ReadLast(path, 10, 0, FilterSystem)
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, EnumerationFailed, system[0].Type)
}

func TestReadLastPagination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l, err := NewLogger(path)
	require.NoError(t, err)
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, l.LogDevice(DeviceDiscovered, record(id), ""))
	}
	require.NoError(t, l.Close())

	page, more, err := ReadLast(path, 2, 0, FilterDevice)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page, 2)
	assert.Equal(t, "audio-E", page[0].ContainerID)

	page, more, err = ReadLast(path, 2, 4, FilterDevice)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page, 1)
	assert.Equal(t, "audio-A", page[0].ContainerID)
}

func TestReadLastSkipsMalformedLinesAndMissingFiles(t *testing.T) {
	dir := t.TempDir()

	events, more, err := ReadLast(filepath.Join(dir, "missing.jsonl"), 10, 0, FilterAll)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, events)

	path := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n{\"type\":\"device_removed\"}\n"), 0o644))
	events, _, err = ReadLast(path, 10, 0, FilterAll)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, DeviceRemoved, events[0].Type)
}

func TestLogAfterClose(t *testing.T) {
	l, err := NewLogger(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.LogDevice(DeviceRemoved, record("DEV1"), ""), os.ErrClosed)
}
