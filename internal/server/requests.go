package server

// Request types for WebSocket commands with validation tags.

// DeviceRenameRequest is the request body for device/rename.
// An empty name restores the name reported by the device.
type DeviceRenameRequest struct {
	NativeID string `json:"native_id" validate:"required,max=256"`
	Name     string `json:"name" validate:"max=100,device_name"`
}

// EventsListRequest is the request body for events/list.
type EventsListRequest struct {
	Limit  int    `json:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset int    `json:"offset" validate:"gte=0"`
	Filter string `json:"filter" validate:"omitempty,oneof=device system"`
}
