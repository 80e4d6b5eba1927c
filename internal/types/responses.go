package types

// WSCommandResult is the standard response for command execution.
type WSCommandResult struct {
	Type    string `json:"type"`            // "<command>_result"
	Success bool   `json:"success"`         // true if command succeeded
	Error   any    `json:"error,omitempty"` // Message or *ValidationError if failed
	Data    any    `json:"data,omitempty"`  // Optional response data
}
