// Package types provides shared type definitions used across the audio meter.
package types

// Well-known container identifiers.
const (
	// DefaultContainerID is the always-present slot that follows the OS default render endpoint.
	DefaultContainerID = "default-audio"
	// ErrorContainerID is the single placeholder shown when device enumeration fails.
	ErrorContainerID = "audio-error"
	// ContainerPrefix namespaces container ids derived from native device ids.
	ContainerPrefix = "audio-"
)

// Display entry field identifiers.
const (
	FieldDeviceName = "device-name"
	FieldAudioLevel = "audio-level"
)

// Fallback names used when a device cannot be read.
const (
	UnknownNativeID   = "Unknown"
	UnknownDeviceName = "Unknown Device"
	ErrorDeviceName   = "Init Error"
	DefaultSlotName   = "Default Audio Device"
)

// DeviceRecord represents one audio render endpoint known to the process.
type DeviceRecord struct {
	// NativeID is the host-API-assigned identifier, stable across runs.
	NativeID string `json:"native_id"`
	// ContainerID is the display-surface key derived from NativeID.
	ContainerID string `json:"container_id"`
	// DefaultName is the name read from the device properties.
	DefaultName string `json:"default_name"`
	// DisplayName is DefaultName unless an override exists.
	DisplayName string `json:"display_name"`
	// Placeholder marks synthetic records that stand in for unreadable devices.
	Placeholder bool `json:"placeholder,omitzero"`
}

// Overridable reports whether the record may carry a user override.
func (r *DeviceRecord) Overridable() bool {
	return !r.Placeholder && r.NativeID != "" && r.NativeID != UnknownNativeID
}

// MonitorState is the lifecycle state of the update coordinator.
type MonitorState string

// Coordinator lifecycle states.
const (
	StateUninitialized MonitorState = "uninitialized"
	StateRunning       MonitorState = "running"
	StateFailed        MonitorState = "failed"
)

// ContainerSnapshot is a point-in-time copy of one display container.
type ContainerSnapshot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DeviceName string  `json:"device_name"`
	Level      float64 `json:"level"`
	Unit       string  `json:"unit"`
}

// WSLevelsResponse is the periodic level broadcast sent to dashboard clients.
type WSLevelsResponse struct {
	Type       string              `json:"type"` // "levels"
	Containers []ContainerSnapshot `json:"containers"`
}

// WSStatusResponse describes the meter state and the known devices.
type WSStatusResponse struct {
	Type          string         `json:"type"` // "status"
	State         MonitorState   `json:"state"`
	Devices       []DeviceRecord `json:"devices"`
	OverridesPath string         `json:"overrides_path"`
	Platform      string         `json:"platform"`
	Version       string         `json:"version"`
	Commit        string         `json:"commit,omitempty"`
}
