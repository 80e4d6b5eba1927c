// Package eventlog records device lifecycle events of the audio meter
// (discovered, removed, default changed, renamed, failures) in a JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-audiometer/internal/types"
	"github.com/oszuidwest/zwfm-audiometer/internal/util"
)

// EventType represents the type of event.
type EventType string

// Device event types.
const (
	DeviceDiscovered EventType = "device_discovered"
	DeviceRemoved    EventType = "device_removed"
	DeviceRenamed    EventType = "device_renamed"
	DefaultChanged   EventType = "default_changed"
)

// System event types.
const (
	EnumerationFailed EventType = "enumeration_failed"
	MonitorFailed     EventType = "monitor_failed"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp   time.Time      `json:"ts"`
	Type        EventType      `json:"type"`
	ContainerID string         `json:"container_id,omitempty"`
	Message     string         `json:"msg,omitempty"`
	Details     *DeviceDetails `json:"details,omitempty"`
}

// DeviceDetails contains device-specific event details.
type DeviceDetails struct {
	NativeID    string `json:"native_id,omitempty"`
	DefaultName string `json:"default_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Logger writes events to a JSON lines file. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, util.WrapError("create event log directory", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, util.WrapError("open event log", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogDevice logs an event about one device record.
func (l *Logger) LogDevice(eventType EventType, rec types.DeviceRecord, message string) error {
	event := &Event{
		Type:        eventType,
		ContainerID: rec.ContainerID,
		Message:     message,
	}
	if rec.ContainerID != "" {
		event.Details = &DeviceDetails{
			NativeID:    rec.NativeID,
			DefaultName: rec.DefaultName,
			DisplayName: rec.DisplayName,
		}
	}
	return l.Log(event)
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll    TypeFilter = ""
	FilterDevice TypeFilter = "device"
	FilterSystem TypeFilter = "system"
)

// MaxReadLimit is the maximum number of events that can be read at once.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type, newest first,
// and whether older matching events exist.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	n = min(n, MaxReadLimit)
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath) //nolint:gosec // operator-configured path
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, util.WrapError("open event log", err)
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, util.WrapError("read event log", err)
	}

	events := make([]Event, 0, n)
	skipped := 0
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !filter.Matches(event.Type) {
			continue
		}

		if skipped < offset {
			skipped++
			continue
		}
		if len(events) == n {
			return events, true, nil
		}
		events = append(events, event)
	}

	return events, false, nil
}

// Matches reports whether an event type passes the filter.
func (f TypeFilter) Matches(t EventType) bool {
	switch f {
	case FilterDevice:
		return IsDeviceEvent(t)
	case FilterSystem:
		return !IsDeviceEvent(t)
	default:
		return true
	}
}

// IsDeviceEvent returns true if the event type concerns a single device.
func IsDeviceEvent(t EventType) bool {
	return t == DeviceDiscovered || t == DeviceRemoved || t == DeviceRenamed || t == DefaultChanged
}
