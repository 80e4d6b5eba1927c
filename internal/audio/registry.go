package audio

import (
	"log/slog"
	"math"
)

// Registry owns the peak-meter handles of all tracked devices, keyed by container id.
// It is not safe for concurrent use; the monitor serializes access.
type Registry struct {
	meters      map[string]Meter
	failing     map[string]bool
	initialized bool
}

// NewRegistry creates an empty, uninitialized registry.
func NewRegistry() *Registry {
	return &Registry{
		meters:  make(map[string]Meter),
		failing: make(map[string]bool),
	}
}

// Initialized reports whether EnsureInitialized has run since the last Release.
func (r *Registry) Initialized() bool {
	return r.initialized
}

// EnsureInitialized acquires a meter for every directory record that has an endpoint.
// Only the first call after creation or Release does any work.
func (r *Registry) EnsureInitialized(dir *Directory) {
	if r.initialized {
		return
	}
	r.initialized = true

	for _, rec := range dir.Records() {
		if ep, ok := dir.Endpoint(rec.ContainerID); ok {
			r.Acquire(rec.ContainerID, ep)
		}
	}
	slog.Info("audio meters initialized", "meters", len(r.meters))
}

// Acquire opens a meter on ep for containerID unless one is already held.
// Failure leaves the container unmetered.
func (r *Registry) Acquire(containerID string, ep Endpoint) bool {
	if _, ok := r.meters[containerID]; ok {
		return true
	}

	m, err := ep.OpenMeter()
	if err != nil {
		slog.Warn("failed to acquire audio meter", "container", containerID, "error", err)
		return false
	}
	r.meters[containerID] = m
	return true
}

// Rebind replaces the meter of containerID with one opened on ep.
func (r *Registry) Rebind(containerID string, ep Endpoint) bool {
	r.Drop(containerID)
	return r.Acquire(containerID, ep)
}

// Drop releases the meter of containerID, if any.
func (r *Registry) Drop(containerID string) {
	if m, ok := r.meters[containerID]; ok {
		m.Release()
		delete(r.meters, containerID)
	}
	delete(r.failing, containerID)
}

// Has reports whether containerID holds a meter.
func (r *Registry) Has(containerID string) bool {
	_, ok := r.meters[containerID]
	return ok
}

// ReadPeak returns the instantaneous peak of containerID clamped to [0,1].
// It reports false when the container has no meter or the read failed.
func (r *Registry) ReadPeak(containerID string) (float64, bool) {
	m, ok := r.meters[containerID]
	if !ok {
		return 0, false
	}

	peak, err := m.PeakValue()
	if err != nil {
		if !r.failing[containerID] {
			slog.Warn("failed to read audio peak", "container", containerID, "error", err)
			r.failing[containerID] = true
		}
		return 0, false
	}
	if r.failing[containerID] {
		slog.Info("audio peak readable again", "container", containerID)
		delete(r.failing, containerID)
	}

	p := float64(peak)
	if math.IsNaN(p) {
		return 0, true
	}
	return min(max(p, 0), 1), true
}

// Release releases every meter exactly once and returns the registry to uninitialized.
func (r *Registry) Release() {
	for id, m := range r.meters {
		m.Release()
		delete(r.meters, id)
	}
	clear(r.failing)
	r.initialized = false
}
