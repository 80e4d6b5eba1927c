// Package monitor provides the update coordinator of the audio meter.
// It owns the device directory, the meter registry and the level state, and
// advances all of them once per tick under a single lock.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-audiometer/internal/audio"
	"github.com/oszuidwest/zwfm-audiometer/internal/eventlog"
	"github.com/oszuidwest/zwfm-audiometer/internal/overrides"
	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

// Sentinel errors for monitor operations.
var (
	ErrInitFailed    = errors.New("audio meter initialization failed")
	ErrNotRunning    = errors.New("audio meter not running")
	ErrUnknownDevice = errors.New("unknown audio device")
)

// Display receives the computed values. Entries are addressed by container and field id.
type Display interface {
	Ensure(id, name string)
	Remove(id string)
	SetText(containerID, fieldID, value string) bool
	SetSensor(containerID, fieldID string, value float64) bool
}

// EventRecorder receives device lifecycle events.
type EventRecorder interface {
	LogDevice(eventType eventlog.EventType, rec types.DeviceRecord, message string) error
}

// Options configures a Monitor.
type Options struct {
	// OverridesPath is the device name file.
	OverridesPath string
	// RescanEvery is the number of ticks between discovery passes; 0 scans only at startup.
	RescanEvery int
	// PruneRemoved drops devices that disappear from a later discovery pass.
	PruneRemoved bool
	// Open creates the endpoint enumerator. Defaults to audio.OpenEnumerator.
	Open func() (audio.Enumerator, error)
	// Events records device lifecycle events. Optional.
	Events EventRecorder
}

const (
	stateUninitialized int32 = iota
	stateRunning
	stateFailed
)

// Monitor coordinates device discovery, metering and display updates.
// It is safe for concurrent use; concurrent ticks run one after another.
type Monitor struct {
	mu      sync.Mutex
	state   atomic.Int32
	display Display
	opts    Options
	store   *overrides.Store
	dir     *audio.Directory
	meters  *audio.Registry
	levels  *audio.LevelEngine
	ticks   int
}

// New creates a monitor that writes into display. Nothing is acquired until the first tick.
func New(display Display, opts Options) *Monitor {
	if opts.Open == nil {
		opts.Open = audio.OpenEnumerator
	}
	return &Monitor{
		display: display,
		opts:    opts,
		store:   overrides.NewStore(opts.OverridesPath),
		meters:  audio.NewRegistry(),
		levels:  audio.NewLevelEngine(),
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() types.MonitorState {
	switch m.state.Load() {
	case stateRunning:
		return types.StateRunning
	case stateFailed:
		return types.StateFailed
	default:
		return types.StateUninitialized
	}
}

// Initialize discovers devices and loads the name file. It is idempotent;
// after a failed initialization it keeps returning ErrInitFailed.
func (m *Monitor) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initLocked()
}

func (m *Monitor) initLocked() (err error) {
	switch m.state.Load() {
	case stateRunning:
		return nil
	case stateFailed:
		return ErrInitFailed
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during audio meter initialization", "panic", r)
			m.state.Store(stateFailed)
			m.record(eventlog.MonitorFailed, types.DeviceRecord{}, fmt.Sprint(r))
			err = ErrInitFailed
		}
	}()

	enum, openErr := m.opts.Open()
	if openErr != nil {
		slog.Error("failed to open audio device enumerator", "error", openErr)
		enum = nil
	}

	m.dir = audio.NewDirectory(enum, m.opts.PruneRemoved)
	m.discoverLocked()
	m.state.Store(stateRunning)

	slog.Info("audio meter initialized", "devices", len(m.dir.Records()), "names", m.store.Path())
	return nil
}

// Update runs one tick: lazy initialization, default device refresh, and a
// meter read plus level step for every device. It never panics.
func (m *Monitor) Update(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	switch m.state.Load() {
	case stateFailed:
		return
	case stateUninitialized:
		if err := m.initLocked(); err != nil {
			return
		}
	}

	m.tickLocked()
}

func (m *Monitor) tickLocked() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during audio meter update", "panic", r)
		}
	}()

	m.ticks++
	if m.opts.RescanEvery > 0 && m.ticks%m.opts.RescanEvery == 0 {
		m.discoverLocked()
	}

	m.refreshDefaultLocked()
	m.meters.EnsureInitialized(m.dir)

	for _, rec := range m.dir.Records() {
		m.updateDevice(rec.ContainerID)
	}
}

// updateDevice reads one meter and publishes its level. A failure only skips this device.
func (m *Monitor) updateDevice(containerID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while metering audio device", "container", containerID, "panic", r)
		}
	}()

	var level float64
	if peak, ok := m.meters.ReadPeak(containerID); ok {
		level = m.levels.Step(containerID, peak)
	} else {
		level = m.levels.Decay(containerID)
	}
	m.display.SetSensor(containerID, types.FieldAudioLevel, level)
}

// discoverLocked runs a discovery pass and wires added and removed devices.
func (m *Monitor) discoverLocked() {
	result := m.dir.Discover()

	for _, rec := range result.Removed {
		m.meters.Drop(rec.ContainerID)
		m.levels.Forget(rec.ContainerID)
		m.display.Remove(rec.ContainerID)
		m.record(eventlog.DeviceRemoved, rec, "")
	}

	if len(result.Added) == 0 {
		return
	}
	if !m.dir.Degraded() {
		m.store.Sync(m.dir.Records())
	}

	for _, rec := range result.Added {
		m.publishName(rec.ContainerID)
		switch {
		case rec.ContainerID == types.ErrorContainerID:
			m.record(eventlog.EnumerationFailed, types.DeviceRecord{}, "device enumeration unavailable")
		case rec.ContainerID != types.DefaultContainerID:
			m.record(eventlog.DeviceDiscovered, m.recordOf(rec.ContainerID), "")
		}
		if !m.meters.Initialized() {
			continue
		}
		if ep, ok := m.dir.Endpoint(rec.ContainerID); ok {
			m.meters.Acquire(rec.ContainerID, ep)
		}
	}
}

// refreshDefaultLocked follows the OS default render endpoint.
func (m *Monitor) refreshDefaultLocked() {
	ep, changed := m.dir.RefreshDefault()
	if !changed {
		return
	}

	m.meters.Rebind(types.DefaultContainerID, ep)
	m.store.Sync(m.dir.Records())
	m.publishName(types.DefaultContainerID)
	m.record(eventlog.DefaultChanged, m.recordOf(types.DefaultContainerID), "")
}

// publishName resolves the display name of a record and writes it to the display.
func (m *Monitor) publishName(containerID string) {
	rec, ok := m.dir.Record(containerID)
	if !ok {
		return
	}

	name := m.store.DisplayName(&rec)
	m.dir.SetDisplayName(containerID, name)

	title := name
	if containerID == types.DefaultContainerID {
		title = types.DefaultSlotName
	}
	m.display.Ensure(containerID, title)
	m.display.SetText(containerID, types.FieldDeviceName, name)
}

// recordOf returns the current record for containerID.
func (m *Monitor) recordOf(containerID string) types.DeviceRecord {
	rec, _ := m.dir.Record(containerID)
	return rec
}

// record forwards an event to the configured recorder. Failures are logged only.
func (m *Monitor) record(eventType eventlog.EventType, rec types.DeviceRecord, message string) {
	if m.opts.Events == nil {
		return
	}
	if err := m.opts.Events.LogDevice(eventType, rec, message); err != nil {
		slog.Warn("failed to record device event", "type", eventType, "error", err)
	}
}

// Rename stores a custom display name for a device and applies it immediately.
// A blank name restores the name reported by the device.
func (m *Monitor) Rename(nativeID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Load() != stateRunning {
		return ErrNotRunning
	}

	var targets []string
	for _, rec := range m.dir.Records() {
		if rec.Overridable() && rec.NativeID == nativeID {
			targets = append(targets, rec.ContainerID)
		}
	}
	if len(targets) == 0 {
		return ErrUnknownDevice
	}

	if err := m.store.Set(nativeID, name); err != nil {
		return err
	}
	for _, id := range targets {
		m.publishName(id)
	}
	m.record(eventlog.DeviceRenamed, m.recordOf(targets[len(targets)-1]), name)

	slog.Info("audio device renamed", "native_id", nativeID, "name", name)
	return nil
}

// Devices returns the records known to this run.
func (m *Monitor) Devices() []types.DeviceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dir == nil {
		return nil
	}
	return m.dir.Records()
}

// Run calls Update every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Update(ctx)
		}
	}
}

// Close releases every meter and endpoint handle and returns the monitor to
// the uninitialized state. A failed monitor stays failed.
func (m *Monitor) Close() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during audio meter shutdown", "panic", r)
			err = errors.New("audio meter shutdown panicked")
		}
	}()

	m.meters.Release()
	m.levels.Reset()
	m.ticks = 0

	if m.dir != nil {
		err = m.dir.Close()
		m.dir = nil
	}

	m.state.CompareAndSwap(stateRunning, stateUninitialized)
	slog.Info("audio meter closed")
	return err
}
