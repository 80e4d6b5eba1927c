package overrides

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

func device(nativeID, name string) types.DeviceRecord {
	return types.DeviceRecord{
		NativeID:    nativeID,
		ContainerID: "audio-" + nativeID,
		DefaultName: name,
		DisplayName: name,
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	names := map[string]string{
		"{0.0.0.00000000}.{b3f8fa53-0004-438e-9003-51a46e139bfc}": "Studio Monitors",
		"DEV1": "Living Room",
		"DEV2": "",
		"DEV3": "Bar; #2 speakers",
		"DEV4": `"Quoted"`,
		"DEV5": "'single'",
		"DEV6": `Share \\studio\`,
	}

	require.NoError(t, Save(path, names))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, names, loaded)
}

func TestSaveRejectsUnrepresentableNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	require.NoError(t, Save(path, map[string]string{"DEV1": "Living Room"}))

	for _, name := range []string{`"""triple`, "two\nlines"} {
		err := Save(path, map[string]string{"DEV1": name})
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DEV1": "Living Room"}, loaded)
}

func TestSaveKeepsOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	require.NoError(t, os.WriteFile(path, []byte(`; studio A
[Devices]
; main output
DEV1 = Living Room
DEV9 = Old Card

[Notes]
owner = engineering
`), 0o644))

	require.NoError(t, Save(path, map[string]string{"DEV1": "Kitchen", "DEV2": "Speakers"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "; main output")
	assert.Contains(t, string(data), "owner")
	assert.NotContains(t, string(data), "DEV9")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DEV1": "Kitchen", "DEV2": "Speakers"}, loaded)
}

func TestSaveRefusesToOverwriteUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	broken := "[Devices\nDEV1 = Living Room\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	require.Error(t, Save(path, map[string]string{"DEV1": "Kitchen"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, broken, string(data))
}

func TestMergeNewKeepsExistingEntries(t *testing.T) {
	existing := map[string]string{"DEV1": "Living Room", "DEV4": ""}
	devices := []types.DeviceRecord{
		device("DEV1", "Speakers (Realtek)"),
		device("DEV2", "Speakers"),
		device("DEV4", "HDMI"),
		{ContainerID: "audio-device-3", DefaultName: "Audio Device 3", Placeholder: true},
		{NativeID: types.UnknownNativeID, ContainerID: "audio-unknown-5", DefaultName: "Line Out"},
	}

	merged, added := MergeNew(devices, existing)

	assert.Equal(t, 1, added)
	assert.Equal(t, map[string]string{
		"DEV1": "Living Room",
		"DEV2": "Speakers",
		"DEV4": "",
	}, merged)
}

func TestResolve(t *testing.T) {
	names := map[string]string{"DEV1": "Living Room", "DEV2": "   "}

	assert.Equal(t, "Living Room", Resolve(names, "DEV1", "Speakers"))
	assert.Equal(t, "Speakers", Resolve(names, "DEV2", "Speakers"))
	assert.Equal(t, "Speakers", Resolve(names, "DEV3", "Speakers"))
}

func TestStoreCreatesFileSeededWithDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	s := NewStore(path)

	s.Sync([]types.DeviceRecord{device("DEV1", "Speakers"), device("DEV2", "Headphones")})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "; Audio meter device names.")
	assert.Contains(t, string(data), "[Devices]")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DEV1": "Speakers", "DEV2": "Headphones"}, loaded)
}

func TestStoreMergesNewDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	require.NoError(t, Save(path, map[string]string{"DEV1": "Living Room"}))

	s := NewStore(path)
	dev1 := device("DEV1", "Speakers (Realtek)")
	dev2 := device("DEV2", "Speakers")
	s.Sync([]types.DeviceRecord{dev1, dev2})

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DEV1": "Living Room", "DEV2": "Speakers"}, loaded)

	assert.Equal(t, "Living Room", s.DisplayName(&dev1))
	assert.Equal(t, "Speakers", s.DisplayName(&dev2))
}

func TestStoreSyncWritesOnlyWhenSomethingWasAdded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	s := NewStore(path)
	devices := []types.DeviceRecord{device("DEV1", "Speakers")}

	s.Sync(devices)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// A file edited by hand between passes must survive a pass with no new devices.
	require.NoError(t, os.WriteFile(path, append(first, []byte("; edited\n")...), 0o644))
	s.Sync(devices)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(second), "; edited")
}

func TestStoreSyncIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	devices := []types.DeviceRecord{device("DEV1", "Speakers"), device("DEV2", "HDMI")}

	once := filepath.Join(dir, "once.ini")
	NewStore(once).Sync(devices)

	twice := filepath.Join(dir, "twice.ini")
	s := NewStore(twice)
	s.Sync(devices)
	s.Sync(devices)

	a, err := os.ReadFile(once)
	require.NoError(t, err)
	b, err := os.ReadFile(twice)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestStoreUnreadableFileDisablesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Devices]\nthis line has no delimiter\n"), 0o644))

	s := NewStore(path)
	dev := device("DEV1", "Speakers")
	s.Sync([]types.DeviceRecord{dev})

	assert.True(t, s.Disabled())
	assert.Equal(t, "Speakers", s.DisplayName(&dev))
	assert.ErrorIs(t, s.Set("DEV1", "Kitchen"), ErrStoreDisabled)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Devices]\nthis line has no delimiter\n", string(data), "file is left untouched")
}

func TestStoreDirectoryPathDisablesOverrides(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Sync([]types.DeviceRecord{device("DEV1", "Speakers")})
	assert.True(t, s.Disabled())
}

func TestStoreSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.ini")
	s := NewStore(path)
	dev := device("DEV1", "Speakers")
	s.Sync([]types.DeviceRecord{dev})

	require.NoError(t, s.Set("DEV1", "  Kitchen "))
	assert.Equal(t, "Kitchen", s.DisplayName(&dev))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", loaded["DEV1"])

	require.NoError(t, s.Set("DEV1", ""))
	assert.Equal(t, "Speakers", s.DisplayName(&dev))
	assert.Equal(t, map[string]string{"DEV1": ""}, s.Names())

	assert.ErrorIs(t, s.Set("DEV1", `"""Studio`), ErrInvalidName)
	assert.Equal(t, map[string]string{"DEV1": ""}, s.Names())
}

func TestMergeNewBlanksUnrepresentableDefaultNames(t *testing.T) {
	merged, added := MergeNew([]types.DeviceRecord{device("DEV1", `"""Speakers`)}, nil)

	assert.Equal(t, 1, added)
	assert.Equal(t, map[string]string{"DEV1": ""}, merged)
}
