package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-audiometer/internal/eventlog"
	"github.com/oszuidwest/zwfm-audiometer/internal/types"
)

// DefaultEventsLimit is the page size of events/list when none is given.
const DefaultEventsLimit = 50

// ErrEventsDisabled is returned when no event log is configured.
var ErrEventsDisabled = errors.New("event log is disabled")

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

//go:generate mockgen -destination=mock_server.go -package=server github.com/oszuidwest/zwfm-audiometer/internal/server DeviceService

// DeviceService is the part of the meter the dashboard may act on.
type DeviceService interface {
	Rename(nativeID, name string) error
	Devices() []types.DeviceRecord
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	devices    DeviceService
	eventsPath string
}

// NewCommandHandler creates a new command handler. An empty eventsPath disables events/*.
func NewCommandHandler(devices DeviceService, eventsPath string) *CommandHandler {
	return &CommandHandler{devices: devices, eventsPath: eventsPath}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "device/rename").
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "device":
		h.handleDevice(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "status":
		h.handleStatus(action)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// handleDevice routes device/* commands
func (h *CommandHandler) handleDevice(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "rename":
		h.handleRename(cmd, send)
	case "list":
		SendSuccess(send, cmd.Type, h.devices.Devices())
	default:
		slog.Warn("unknown device action", "action", action)
	}
}

// handleEvents routes events/* commands
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		HandleCommand(cmd, send, func(req *EventsListRequest) (any, error) {
			return h.ListEvents(req)
		})
	default:
		slog.Warn("unknown events action", "action", action)
	}
}

// EventsPage is one page of the device event log.
type EventsPage struct {
	Events  []eventlog.Event `json:"events"`
	HasMore bool             `json:"has_more"`
}

// ListEvents reads one page of the event log, newest first.
func (h *CommandHandler) ListEvents(req *EventsListRequest) (*EventsPage, error) {
	if h.eventsPath == "" {
		return nil, ErrEventsDisabled
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultEventsLimit
	}

	events, more, err := eventlog.ReadLast(h.eventsPath, limit, req.Offset, eventlog.TypeFilter(req.Filter))
	if err != nil {
		return nil, err
	}
	return &EventsPage{Events: events, HasMore: more}, nil
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}

func (h *CommandHandler) handleRename(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *DeviceRenameRequest) (any, error) {
		name := strings.TrimSpace(req.Name)
		if err := h.devices.Rename(req.NativeID, name); err != nil {
			return nil, err
		}
		return map[string]string{"native_id": req.NativeID, "name": name}, nil
	})
}
