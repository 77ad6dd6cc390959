package recorder

import "github.com/openevs/evs-recorder/event"

// Recorder persists the raw events of finalized windows. The window
// accumulator samples Enabled once per window boundary and calls
// WriteWindow only for windows that were recording-enabled when opened.
type Recorder interface {
	// WriteWindow persists one finalized window. index is the 1-based
	// position of the window within the current recording session and
	// startUs the window's start timestamp in microseconds.
	WriteWindow(index int, startUs int64, events []event.Event) error

	// Enabled reports whether recording is currently on.
	Enabled() bool
}

type NoWriteRecorder struct{}

func (*NoWriteRecorder) WriteWindow(int, int64, []event.Event) error { return nil }
func (*NoWriteRecorder) Enabled() bool                               { return false }
