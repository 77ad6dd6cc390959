package device

import (
	"errors"

	"github.com/openevs/evs-recorder/event"
)

var (
	// ErrDeviceUnavailable is returned when no event camera can be found.
	ErrDeviceUnavailable = errors.New("no event camera found")

	ErrBiasUnsupported = errors.New("device has no bias facility")
	ErrBiasNotFound    = errors.New("bias not available on this camera")
	ErrBiasReadOnly    = errors.New("bias is read-only")
	ErrBiasWriteFailed = errors.New("driver rejected bias value")
)

// Device is an open event camera. Implementations deliver events by
// invoking the listener installed with Listen; the event slice passed to
// the listener is only valid for the duration of the call.
type Device interface {
	// Geometry returns the sensor width and height in pixels. It is
	// fixed for the lifetime of the device.
	Geometry() (width, height int)

	// Listen installs the ingestion callback. It must be called before
	// Start.
	Listen(fn func(events []event.Event))

	// Start begins event delivery.
	Start() error

	// Stop halts event delivery. The listener is not invoked after Stop
	// returns.
	Stop() error

	// Close releases the device.
	Close() error

	// Biases returns the device's bias facility. Not all hardware
	// exposes one; ok is false when bias adjustment is unsupported.
	Biases() (facility BiasFacility, ok bool)
}

// OpenFunc opens an event camera, returning ErrDeviceUnavailable when none
// is present.
type OpenFunc func() (Device, error)

// BiasInfo describes one named sensor bias.
type BiasInfo struct {
	Min         int
	Max         int
	Modifiable  bool
	Description string
	Category    string
}

// BiasFacility reads and writes the sensor's named integer parameters.
type BiasFacility interface {
	// All returns the current value of every bias.
	All() map[string]int

	// Info returns range and mutability for a bias, ok false if the
	// bias is unknown.
	Info(name string) (info BiasInfo, ok bool)

	// Get returns the current value of a bias.
	Get(name string) int

	// Set writes a bias value, reporting false if the driver rejected it.
	Set(name string, value int) bool
}
