package audio

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

// ScanResult lists the records a discovery pass added or removed.
type ScanResult struct {
	Added   []types.DeviceRecord
	Removed []types.DeviceRecord
}

// Directory tracks the render endpoints known to this run. Records are never
// renamed in place; the default slot is refreshed instead of re-created.
// It is not safe for concurrent use; the monitor serializes access.
type Directory struct {
	enum        Enumerator
	prune       bool
	records     []*types.DeviceRecord
	byNative    map[string]*types.DeviceRecord
	byContainer map[string]*types.DeviceRecord
	endpoints   map[string]Endpoint
	degraded    bool
	defaultErr  bool
}

// NewDirectory creates a directory over enum. A nil enum yields the error placeholder on first discovery.
// When prune is set, devices missing from a later pass are dropped.
func NewDirectory(enum Enumerator, prune bool) *Directory {
	return &Directory{
		enum:        enum,
		prune:       prune,
		byNative:    make(map[string]*types.DeviceRecord),
		byContainer: make(map[string]*types.DeviceRecord),
		endpoints:   make(map[string]Endpoint),
	}
}

// ContainerID derives a display-surface key from a native endpoint id.
// Braces and dots are stripped; other separators become dashes.
func ContainerID(nativeID string) string {
	var b strings.Builder
	b.WriteString(types.ContainerPrefix)
	for _, r := range nativeID {
		switch {
		case r == '{' || r == '}' || r == '.':
		case r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Placeholder builds the synthetic record for an endpoint slot that could not be read.
func Placeholder(index int) types.DeviceRecord {
	name := fmt.Sprintf("Audio Device %d", index+1)
	return types.DeviceRecord{
		ContainerID: fmt.Sprintf("%sdevice-%d", types.ContainerPrefix, index+1),
		DefaultName: name,
		DisplayName: name,
		Placeholder: true,
	}
}

// ErrorPlaceholder builds the single record shown when enumeration itself fails.
func ErrorPlaceholder() types.DeviceRecord {
	return types.DeviceRecord{
		ContainerID: types.ErrorContainerID,
		DefaultName: types.ErrorDeviceName,
		DisplayName: types.ErrorDeviceName,
		Placeholder: true,
	}
}

// Degraded reports whether the directory fell back to the error placeholder.
func (d *Directory) Degraded() bool {
	return d.degraded
}

// Discover enumerates active render endpoints and records the ones not seen before.
// A failure on one endpoint never aborts the pass. Once every slot of a pass
// resolves to a native id, records that stood in for unreadable slots are dropped.
func (d *Directory) Discover() ScanResult {
	var result ScanResult
	if d.degraded {
		return result
	}

	if d.enum == nil {
		slog.Error("device enumerator unavailable, showing error placeholder")
		return d.degrade()
	}

	snap, err := d.enum.Snapshot()
	if err != nil {
		if len(d.records) == 0 {
			slog.Error("failed to enumerate audio endpoints", "error", err)
			return d.degrade()
		}
		slog.Warn("audio endpoint rescan failed, keeping known devices", "error", err)
		return result
	}
	defer snap.Release()

	if _, ok := d.byContainer[types.DefaultContainerID]; !ok {
		rec := d.add(types.DeviceRecord{
			ContainerID: types.DefaultContainerID,
			DefaultName: types.DefaultSlotName,
			DisplayName: types.DefaultSlotName,
		}, nil)
		result.Added = append(result.Added, rec)
	}

	count := snap.Count()
	seen := make(map[string]bool, count)
	resolved := true
	for i := range count {
		rec, ep := d.readSlot(snap, i)
		if rec.Overridable() {
			seen[rec.NativeID] = true
		} else {
			resolved = false
		}

		if d.known(&rec) {
			if ep != nil {
				ep.Release()
			}
			continue
		}

		if ep != nil {
			rec.DefaultName = FriendlyName(ep)
			rec.DisplayName = rec.DefaultName
		}
		result.Added = append(result.Added, d.add(rec, ep))
		slog.Info("audio device discovered", "device", rec.DefaultName, "container", rec.ContainerID, "native_id", rec.NativeID)
	}

	if !resolved {
		return result
	}
	result.Removed = d.removeWhere(isSlotRecord)
	if d.prune {
		result.Removed = append(result.Removed, d.removeWhere(func(rec *types.DeviceRecord) bool {
			return rec.ContainerID != types.DefaultContainerID && !seen[rec.NativeID]
		})...)
	}
	return result
}

// readSlot reads the identity of one endpoint slot. Slots that cannot be opened
// become placeholders; an unreadable id keeps the endpoint under an index-based record.
func (d *Directory) readSlot(snap Collection, i int) (types.DeviceRecord, Endpoint) {
	ep, err := snap.Item(i)
	if err != nil {
		slog.Warn("failed to open audio endpoint", "index", i, "error", err)
		return Placeholder(i), nil
	}

	id, err := ep.ID()
	if err != nil || id == "" {
		slog.Warn("failed to read audio endpoint id", "index", i, "error", err)
		return types.DeviceRecord{
			NativeID:    types.UnknownNativeID,
			ContainerID: fmt.Sprintf("%sunknown-%d", types.ContainerPrefix, i+1),
		}, ep
	}
	return types.DeviceRecord{NativeID: id, ContainerID: d.uniqueContainerID(id)}, ep
}

// isSlotRecord reports whether rec is keyed by enumeration index instead of a native id.
func isSlotRecord(rec *types.DeviceRecord) bool {
	return rec.ContainerID != types.DefaultContainerID && rec.ContainerID != types.ErrorContainerID && !rec.Overridable()
}

// FriendlyName reads the endpoint display name, falling back to "Unknown Device".
func FriendlyName(ep Endpoint) string {
	name, err := ep.FriendlyName()
	if err != nil {
		slog.Warn("failed to read audio device name", "error", err)
		return types.UnknownDeviceName
	}
	if strings.TrimSpace(name) == "" {
		return types.UnknownDeviceName
	}
	return name
}

// known reports whether the record is already tracked for this run.
func (d *Directory) known(rec *types.DeviceRecord) bool {
	if rec.Overridable() {
		_, ok := d.byNative[rec.NativeID]
		return ok
	}
	_, ok := d.byContainer[rec.ContainerID]
	return ok
}

// uniqueContainerID derives the container id for nativeID and resolves collisions.
func (d *Directory) uniqueContainerID(nativeID string) string {
	base := ContainerID(nativeID)
	id := base
	for n := 2; ; n++ {
		existing, taken := d.byContainer[id]
		if !taken || existing.NativeID == nativeID {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// add stores rec and takes ownership of ep.
func (d *Directory) add(rec types.DeviceRecord, ep Endpoint) types.DeviceRecord {
	stored := rec
	d.records = append(d.records, &stored)
	d.byContainer[stored.ContainerID] = &stored
	if stored.Overridable() && stored.ContainerID != types.DefaultContainerID {
		d.byNative[stored.NativeID] = &stored
	}
	if ep != nil {
		d.endpoints[stored.ContainerID] = ep
	}
	return stored
}

// removeWhere drops the records matching drop and releases their endpoints.
func (d *Directory) removeWhere(drop func(rec *types.DeviceRecord) bool) []types.DeviceRecord {
	var removed []types.DeviceRecord
	d.records = slices.DeleteFunc(d.records, func(rec *types.DeviceRecord) bool {
		if !drop(rec) {
			return false
		}
		if ep, ok := d.endpoints[rec.ContainerID]; ok {
			ep.Release()
			delete(d.endpoints, rec.ContainerID)
		}
		if rec.Overridable() {
			delete(d.byNative, rec.NativeID)
		}
		delete(d.byContainer, rec.ContainerID)
		removed = append(removed, *rec)
		slog.Info("audio device removed", "device", rec.DisplayName, "container", rec.ContainerID)
		return true
	})
	return removed
}

// degrade replaces the directory with the error placeholder for the rest of the run.
func (d *Directory) degrade() ScanResult {
	d.releaseEndpoints()
	d.records = nil
	clear(d.byNative)
	clear(d.byContainer)
	d.degraded = true

	rec := d.add(ErrorPlaceholder(), nil)
	return ScanResult{Added: []types.DeviceRecord{rec}}
}

// RefreshDefault rebinds the default slot to the current OS default render endpoint.
// It returns the endpoint when the binding changed; the directory keeps ownership of it.
func (d *Directory) RefreshDefault() (Endpoint, bool) {
	slot, ok := d.byContainer[types.DefaultContainerID]
	if d.degraded || !ok || d.enum == nil {
		return nil, false
	}

	ep, err := d.enum.Default()
	if err != nil {
		if !d.defaultErr {
			slog.Warn("failed to read default audio endpoint", "error", err)
			d.defaultErr = true
		}
		return nil, false
	}
	if d.defaultErr {
		slog.Info("default audio endpoint available again")
		d.defaultErr = false
	}

	id, err := ep.ID()
	if err != nil || id == "" {
		ep.Release()
		return nil, false
	}
	if id == slot.NativeID {
		ep.Release()
		return nil, false
	}

	if old, ok := d.endpoints[types.DefaultContainerID]; ok {
		old.Release()
	}
	d.endpoints[types.DefaultContainerID] = ep

	slot.NativeID = id
	slot.DefaultName = FriendlyName(ep)
	slot.DisplayName = slot.DefaultName
	slog.Info("default audio device changed", "device", slot.DefaultName, "native_id", id)
	return ep, true
}

// Record returns a copy of the record for containerID.
func (d *Directory) Record(containerID string) (types.DeviceRecord, bool) {
	rec, ok := d.byContainer[containerID]
	if !ok {
		return types.DeviceRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records in discovery order.
func (d *Directory) Records() []types.DeviceRecord {
	out := make([]types.DeviceRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, *rec)
	}
	return out
}

// Endpoint returns the endpoint bound to containerID, if any.
func (d *Directory) Endpoint(containerID string) (Endpoint, bool) {
	ep, ok := d.endpoints[containerID]
	return ep, ok
}

// SetDisplayName updates the display name of a record.
func (d *Directory) SetDisplayName(containerID, name string) {
	if rec, ok := d.byContainer[containerID]; ok {
		rec.DisplayName = name
	}
}

// Close releases every endpoint and the enumerator.
func (d *Directory) Close() error {
	d.releaseEndpoints()
	if d.enum == nil {
		return nil
	}
	err := d.enum.Close()
	d.enum = nil
	return err
}

func (d *Directory) releaseEndpoints() {
	for id, ep := range d.endpoints {
		ep.Release()
		delete(d.endpoints, id)
	}
}
