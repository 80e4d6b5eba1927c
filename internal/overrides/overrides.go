// Package overrides persists user-chosen device display names in an INI file
// keyed by native endpoint id.
package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
	"github.com/oszuidwest/zwfm-audiometer/internal/util"
)

// SectionName is the INI section that holds the device names.
const SectionName = "Devices"

// header is written above the section.
var header = []string{
	"Audio meter device names.",
	"Each key is a Windows endpoint id; the value is the name shown on the dashboard.",
	"Leave a value blank to use the name reported by Windows.",
}

// Sentinel errors for override operations.
var (
	ErrStoreDisabled = errors.New("override store disabled")
	ErrInvalidName   = errors.New("device name must not contain line breaks or triple quotes")
)

// Values are read back exactly as written: quotes, comment symbols and
// trailing backslashes are part of the name.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
}

// ValidName reports whether name survives a write and reload of the override file.
// Surrounding whitespace is trimmed before names are stored.
func ValidName(name string) bool {
	return !strings.ContainsAny(name, "\r\n") && !strings.Contains(name, `"""`)
}

// Load reads the device name map from path. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, util.WrapError("parse override file", err)
	}

	names := make(map[string]string)
	sec, err := f.GetSection(SectionName)
	if err != nil {
		return names, nil
	}
	for _, key := range sec.Keys() {
		names[key.Name()] = key.String()
	}
	return names, nil
}

// MergeNew adds every overridable device not yet present in existing, using its
// default name. Existing entries are never changed. It returns the number added.
func MergeNew(devices []types.DeviceRecord, existing map[string]string) (map[string]string, int) {
	if existing == nil {
		existing = make(map[string]string)
	}

	added := 0
	for _, d := range devices {
		if !d.Overridable() {
			continue
		}
		if _, ok := existing[d.NativeID]; ok {
			continue
		}
		name := strings.TrimSpace(d.DefaultName)
		if !ValidName(name) {
			name = ""
		}
		existing[d.NativeID] = name
		added++
	}
	return existing, added
}

// Save writes names to the [Devices] section of path, creating the file and
// its parent directory if needed. Other sections and comments in an existing
// file are kept. Keys not in names are removed from the section.
func Save(path string, names map[string]string) error {
	for id, name := range names {
		if !ValidName(name) {
			return fmt.Errorf("%w: %s", ErrInvalidName, id)
		}
	}

	f, err := loadForUpdate(path)
	if err != nil {
		return err
	}

	sec, err := f.GetSection(SectionName)
	if err != nil {
		if sec, err = f.NewSection(SectionName); err != nil {
			return util.WrapError("create override section", err)
		}
		sec.Comment = strings.Join(header, ini.LineBreak)
	}

	for _, id := range sec.KeyStrings() {
		if _, ok := names[id]; !ok {
			sec.DeleteKey(id)
		}
	}

	ids := slices.Sorted(maps.Keys(names))
	for _, id := range ids {
		if sec.HasKey(id) {
			sec.Key(id).SetValue(strings.TrimSpace(names[id]))
			continue
		}
		if _, err := sec.NewKey(id, strings.TrimSpace(names[id])); err != nil {
			return util.WrapError("add override entry", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return util.WrapError("encode override file", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return util.WrapError("create override directory", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // user-editable file
		return util.WrapError("write override file", err)
	}
	return nil
}

// loadForUpdate parses the existing file at path, or returns an empty file when there is none.
func loadForUpdate(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ini.Empty(loadOptions), nil
	case err != nil:
		return nil, util.WrapError("read override file", err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, util.WrapError("parse override file", err)
	}
	return f, nil
}

// Resolve returns the override for nativeID, or defaultName when none is set or it is blank.
func Resolve(names map[string]string, nativeID, defaultName string) string {
	if name, ok := names[nativeID]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return defaultName
}

// Store applies the override file to discovered devices. Read and write
// failures are logged and never returned to the tick.
// It is not safe for concurrent use; the monitor serializes access.
type Store struct {
	path     string
	names    map[string]string
	loaded   bool
	disabled bool
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Disabled reports whether the backing file was unreadable this run.
func (s *Store) Disabled() bool {
	return s.disabled
}

// Sync records devices not yet in the file and rewrites it only when
// something was added. The first call loads the file, creating it when absent.
func (s *Store) Sync(devices []types.DeviceRecord) {
	if s.disabled {
		return
	}

	if !s.loaded {
		s.loaded = true
		names, err := Load(s.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("creating device name file", "path", s.path)
			s.names, _ = MergeNew(devices, nil)
			s.save()
			return
		case err != nil:
			slog.Error("failed to load device name file, overrides disabled", "path", s.path, "error", err)
			s.disabled = true
			return
		}
		s.names = names
		slog.Info("loaded device name file", "path", s.path, "entries", len(names))
	}

	merged, added := MergeNew(devices, s.names)
	s.names = merged
	if added > 0 {
		slog.Info("recording new devices in name file", "added", added)
		s.save()
	}
}

// DisplayName returns the name to show for rec.
func (s *Store) DisplayName(rec *types.DeviceRecord) string {
	if s.disabled || !rec.Overridable() {
		return rec.DefaultName
	}
	return Resolve(s.names, rec.NativeID, rec.DefaultName)
}

// Set stores a custom name for nativeID and persists it.
func (s *Store) Set(nativeID, name string) error {
	if s.disabled {
		return ErrStoreDisabled
	}
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return ErrInvalidName
	}
	if s.names == nil {
		s.names = make(map[string]string)
	}

	s.names[nativeID] = name
	return Save(s.path, s.names)
}

// Names returns a copy of the current name map.
func (s *Store) Names() map[string]string {
	return maps.Clone(s.names)
}

func (s *Store) save() {
	if err := Save(s.path, s.names); err != nil {
		slog.Error("failed to save device name file", "path", s.path, "error", err)
	}
}
