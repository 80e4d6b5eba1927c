// Package display models the dashboard containers the monitor writes into.
// Each container carries a device name text entry and an audio level sensor.
package display

import (
	"slices"
	"sync"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

// LevelUnit is the unit of the audio level sensor.
const LevelUnit = "%"

// Text is a string-valued display entry.
type Text struct {
	ID    string
	Name  string
	Value string
}

// Sensor is a numeric display entry.
type Sensor struct {
	ID    string
	Name  string
	Unit  string
	Value float64
}

// Container is one addressable unit of the dashboard.
type Container struct {
	ID      string
	Name    string
	Texts   []*Text
	Sensors []*Sensor
}

func (c *Container) text(id string) *Text {
	for _, t := range c.Texts {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (c *Container) sensor(id string) *Sensor {
	for _, s := range c.Sensors {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Surface holds the dashboard containers. It is safe for concurrent use.
type Surface struct {
	mu         sync.RWMutex
	order      []string
	containers map[string]*Container
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{containers: make(map[string]*Container)}
}

// Ensure adds the container for a device unless it exists, and keeps its title current.
func (s *Surface) Ensure(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.containers[id]; ok {
		c.Name = name
		return
	}

	s.containers[id] = &Container{
		ID:   id,
		Name: name,
		Texts: []*Text{
			{ID: types.FieldDeviceName, Name: "Device", Value: name},
		},
		Sensors: []*Sensor{
			{ID: types.FieldAudioLevel, Name: "Audio Level", Unit: LevelUnit},
		},
	}
	s.order = append(s.order, id)
}

// Remove drops a container.
func (s *Surface) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.containers, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}

// SetText sets a text entry and reports whether it exists.
func (s *Surface) SetText(containerID, fieldID, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[containerID]
	if !ok {
		return false
	}
	t := c.text(fieldID)
	if t == nil {
		return false
	}
	t.Value = value
	return true
}

// SetSensor sets a sensor entry and reports whether it exists.
func (s *Surface) SetSensor(containerID, fieldID string, value float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[containerID]
	if !ok {
		return false
	}
	sn := c.sensor(fieldID)
	if sn == nil {
		return false
	}
	sn.Value = value
	return true
}

// Len returns the number of containers.
func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns a copy of every container in creation order.
func (s *Surface) Snapshot() []types.ContainerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ContainerSnapshot, 0, len(s.order))
	for _, id := range s.order {
		c := s.containers[id]
		snap := types.ContainerSnapshot{ID: c.ID, Name: c.Name}
		if t := c.text(types.FieldDeviceName); t != nil {
			snap.DeviceName = t.Value
		}
		if sn := c.sensor(types.FieldAudioLevel); sn != nil {
			snap.Level = sn.Value
			snap.Unit = sn.Unit
		}
		out = append(out, snap)
	}
	return out
}
