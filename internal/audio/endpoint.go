// Package audio provides render endpoint discovery, per-device peak metering,
// and the level curve that turns raw peaks into a stable VU-style percentage.
package audio

//go:generate mockgen -destination=mock_audio.go -package=audio github.com/oszuidwest/zwfm-audiometer/internal/audio Enumerator,Collection,Endpoint,Meter

import "errors"

// Sentinel errors for endpoint API operations.
var (
	ErrUnsupportedPlatform = errors.New("audio endpoint metering is not supported on this platform")
	ErrEnumeratorClosed    = errors.New("device enumerator closed")
)

// Enumerator lists the active render endpoints of the host.
type Enumerator interface {
	// Snapshot captures the active render endpoints. The caller owns the result.
	Snapshot() (Collection, error)
	// Default returns the current OS default render endpoint. The caller owns the result.
	Default() (Endpoint, error)
	// Close releases the enumerator. Endpoints obtained from it must be released first.
	Close() error
}

// Collection is one capture of the active render endpoints. Index order is
// only stable within a collection; identify endpoints across passes by ID.
type Collection interface {
	Count() int
	// Item returns the endpoint at index i. The caller owns the result.
	Item(i int) (Endpoint, error)
	Release()
}

// Endpoint is an owned handle to one render endpoint.
type Endpoint interface {
	ID() (string, error)
	FriendlyName() (string, error)
	// OpenMeter activates a peak meter on the endpoint. The caller owns the result.
	OpenMeter() (Meter, error)
	Release()
}

// Meter is an owned peak-meter handle bound to one endpoint.
type Meter interface {
	// PeakValue returns the instantaneous peak in [0,1].
	PeakValue() (float32, error)
	Release()
}
