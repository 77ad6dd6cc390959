// evs-recorder - accumulate event camera output into fixed length frames
//  Copyright (C) 2025, The OpenEVS Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package window

import (
	"log"
	"sync/atomic"

	"github.com/openevs/evs-recorder/chunkqueue"
	"github.com/openevs/evs-recorder/event"
	"github.com/openevs/evs-recorder/recorder"
)

// Stats describes one finalized window.
type Stats struct {
	FrameIndex    int
	WindowStartUs int64
	EventCount    int
	QueueDepth    int
	Recording     bool
}

// Accumulator buckets a monotonic event stream into fixed width,
// non-overlapping time windows and renders one frame per window. Chunk
// boundaries carry no meaning: only event time advances a window.
//
// All mutable window state belongs to the single consumer goroutine running
// Run. The rest of the program communicates through the reset flags (atomic,
// effective no later than the next chunk), the recorder's enabled flag
// (sampled once per window boundary) and the frame store.
type Accumulator struct {
	windowUs int64
	rec      recorder.Recorder
	frames   *Store

	resetPending          atomic.Bool
	recordingResetPending atomic.Bool

	onWindow func(Stats)
	depth    func() int

	// State below is owned by the consumer goroutine.
	width, height int
	open          bool
	start, end    int64
	frame         *Frame
	events        []event.Event
	eventCount    int
	recording     bool
	frameIndex    int
	recorded      int
}

// New returns an accumulator cutting windows of windowUs microseconds.
func New(windowUs int64, rec recorder.Recorder, frames *Store) *Accumulator {
	return &Accumulator{
		windowUs: windowUs,
		rec:      rec,
		frames:   frames,
	}
}

// SetOnWindow installs a hook called (from the consumer goroutine) for each
// finalized window. Must be set before Run starts.
func (a *Accumulator) SetOnWindow(fn func(Stats)) {
	a.onWindow = fn
}

// SetGeometry fixes the sensor geometry for the next session. It must only
// be called while no consumer is running.
func (a *Accumulator) SetGeometry(width, height int) {
	a.width = width
	a.height = height
	a.frame = nil
}

// RequestReset asks the consumer to discard any partially accumulated
// window, without finalizing or persisting it, and return to the idle
// state. Raised on device open and close.
func (a *Accumulator) RequestReset() {
	a.resetPending.Store(true)
}

// RequestRecordingReset asks the consumer to restart the persisted frame
// numbering. The window boundary state is untouched.
func (a *Accumulator) RequestRecordingReset() {
	a.recordingResetPending.Store(true)
}

// Run consumes chunks from q until the queue is closed and drained. It is
// the only goroutine allowed to touch the live frame and event list.
func (a *Accumulator) Run(q *chunkqueue.Queue) {
	a.depth = q.Len
	for {
		a.applyPending()
		chunk, ok := q.Dequeue()
		if !ok {
			return
		}
		a.ProcessChunk(chunk)
	}
}

// ProcessChunk feeds one chunk of events through the window state machine.
func (a *Accumulator) ProcessChunk(chunk event.Chunk) {
	for _, ev := range chunk {
		a.process(ev)
	}
}

func (a *Accumulator) applyPending() {
	if a.resetPending.Swap(false) {
		a.reset()
	}
	if a.recordingResetPending.Swap(false) {
		a.recorded = 0
	}
}

func (a *Accumulator) reset() {
	a.open = false
	a.frame = nil
	a.events = nil
	a.eventCount = 0
	a.frameIndex = 0
	a.recorded = 0
}

func (a *Accumulator) process(ev event.Event) {
	if !a.open {
		// Events arriving before geometry is known are dropped.
		if a.width <= 0 || a.height <= 0 {
			return
		}
		a.openWindow(ev.T)
	}

	// A while, not an if: a gap in the stream may cross several window
	// boundaries, each of which finalizes a (possibly empty) window.
	for ev.T >= a.end {
		a.finalize()
	}

	a.eventCount++
	if int(ev.X) < a.width && int(ev.Y) < a.height {
		a.frame.Pix[int(ev.Y)*a.width+int(ev.X)] = 255
	}
	if a.recording {
		a.events = append(a.events, ev)
	}
}

func (a *Accumulator) openWindow(startUs int64) {
	if a.frame == nil {
		a.frame = newFrame(a.width, a.height)
	}
	a.open = true
	a.start = startUs
	a.end = startUs + a.windowUs
	a.events = a.events[:0]
	a.eventCount = 0
	a.recording = a.rec.Enabled()
}

// finalize closes the live window, persisting it when recording was enabled
// for it, publishes the frame snapshot, and opens the next window. The
// recording flag is resampled so a mid-stream toggle never affects an
// already finalized window and applies cleanly from the next one.
func (a *Accumulator) finalize() {
	if a.recording {
		a.recorded++
		if err := a.rec.WriteWindow(a.recorded, a.start, a.events); err != nil {
			log.Printf("failed to persist window at t0=%dus: %v", a.start, err)
		}
	}

	a.frames.Set(a.frame)

	if a.onWindow != nil {
		a.onWindow(Stats{
			FrameIndex:    a.frameIndex,
			WindowStartUs: a.start,
			EventCount:    a.eventCount,
			QueueDepth:    a.queueDepth(),
			Recording:     a.recording,
		})
	}

	a.frameIndex++
	a.start = a.end
	a.end = a.start + a.windowUs
	for i := range a.frame.Pix {
		a.frame.Pix[i] = 0
	}
	a.events = a.events[:0]
	a.eventCount = 0
	a.recording = a.rec.Enabled()
}

func (a *Accumulator) queueDepth() int {
	if a.depth == nil {
		return 0
	}
	return a.depth()
}
