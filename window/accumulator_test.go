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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openevs/evs-recorder/chunkqueue"
	"github.com/openevs/evs-recorder/event"
)

const testWindowUs = 2000

type recordedWindow struct {
	index   int
	startUs int64
	events  []event.Event
}

type fakeRecorder struct {
	enabled  bool
	writeErr error
	windows  []recordedWindow
}

func (f *fakeRecorder) WriteWindow(index int, startUs int64, events []event.Event) error {
	// The accumulator reuses its event buffer, so keep a copy.
	evs := make([]event.Event, len(events))
	copy(evs, events)
	f.windows = append(f.windows, recordedWindow{index, startUs, evs})
	return f.writeErr
}

func (f *fakeRecorder) Enabled() bool { return f.enabled }

func newTestAccumulator(width, height int) (*Accumulator, *fakeRecorder, *Store, *[]Stats) {
	rec := new(fakeRecorder)
	frames := NewStore()
	acc := New(testWindowUs, rec, frames)
	acc.SetGeometry(width, height)

	stats := new([]Stats)
	acc.SetOnWindow(func(st Stats) {
		*stats = append(*stats, st)
	})
	return acc, rec, frames, stats
}

func pixelSet(f *Frame, x, y int) bool {
	return f.Pix[y*f.Width+x] == 255
}

func countSet(f *Frame) int {
	n := 0
	for _, p := range f.Pix {
		if p == 255 {
			n++
		}
	}
	return n
}

func TestTwoWindowAccumulation(t *testing.T) {
	acc, _, frames, stats := newTestAccumulator(4, 4)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 2, Y: 2, T: 1500},
		{X: 3, Y: 3, T: 2500},
	})

	// The third event crosses the [0,2000) boundary and finalizes the
	// first window.
	require.Len(t, *stats, 1)
	assert.Equal(t, int64(0), (*stats)[0].WindowStartUs)

	first := frames.Latest()
	require.NotNil(t, first)
	assert.True(t, pixelSet(first, 1, 1))
	assert.True(t, pixelSet(first, 2, 2))
	assert.Equal(t, 2, countSet(first))

	// An event past 4000us finalizes the second window [2000,4000).
	acc.ProcessChunk(event.Chunk{{X: 0, Y: 0, T: 4100}})

	require.Len(t, *stats, 2)
	assert.Equal(t, int64(2000), (*stats)[1].WindowStartUs)

	second := frames.Latest()
	require.NotNil(t, second)
	assert.True(t, pixelSet(second, 3, 3))
	assert.Equal(t, 1, countSet(second))
}

func TestChunkBoundaryIndependence(t *testing.T) {
	events := []event.Event{
		{X: 0, Y: 0, T: 100},
		{X: 1, Y: 0, T: 900},
		{X: 2, Y: 1, T: 2100},
		{X: 3, Y: 3, T: 2200},
		{X: 1, Y: 2, T: 6500},
		{X: 0, Y: 3, T: 9100},
	}

	splits := [][]int{
		{len(events)},          // one chunk
		{1, 1, 1, 1, 1, 1},     // one event per chunk
		{2, 1, 3},              // arbitrary
		{1, 5},                 // boundary mid-run
	}

	var reference []Stats
	var referenceWindows []recordedWindow
	for i, split := range splits {
		acc, rec, _, stats := newTestAccumulator(4, 4)
		rec.enabled = true

		offset := 0
		for _, n := range split {
			acc.ProcessChunk(event.Chunk(events[offset : offset+n]))
			offset += n
		}

		if i == 0 {
			reference = *stats
			referenceWindows = rec.windows
			continue
		}
		assert.Equal(t, reference, *stats, "stats differ for split %v", split)
		assert.Equal(t, referenceWindows, rec.windows, "recorded windows differ for split %v", split)
	}
}

func TestGapSpanningMultipleWindows(t *testing.T) {
	acc, _, _, stats := newTestAccumulator(4, 4)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 2, Y: 2, T: 7000},
	})

	// [0,2000), [2000,4000) and [4000,6000) all finalize; the live window
	// is [6000,8000). The two intermediate windows are empty.
	require.Len(t, *stats, 3)
	assert.Equal(t, int64(0), (*stats)[0].WindowStartUs)
	assert.Equal(t, int64(2000), (*stats)[1].WindowStartUs)
	assert.Equal(t, int64(4000), (*stats)[2].WindowStartUs)
	assert.Equal(t, 1, (*stats)[0].EventCount)
	assert.Equal(t, 0, (*stats)[1].EventCount)
	assert.Equal(t, 0, (*stats)[2].EventCount)
	assert.Equal(t, []int{0, 1, 2}, []int{
		(*stats)[0].FrameIndex, (*stats)[1].FrameIndex, (*stats)[2].FrameIndex,
	})
}

func TestStatsCountEventsWhileNotRecording(t *testing.T) {
	acc, rec, _, stats := newTestAccumulator(4, 4)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 2, Y: 2, T: 1500},
		{X: 3, Y: 3, T: 2500},
	})

	// The event count is window population, not the recording list.
	require.Len(t, *stats, 1)
	assert.Equal(t, 2, (*stats)[0].EventCount)
	assert.False(t, (*stats)[0].Recording)
	assert.Empty(t, rec.windows)

	// Turning recording on must not change the count.
	rec.enabled = true
	acc.ProcessChunk(event.Chunk{
		{X: 0, Y: 0, T: 4200},
		{X: 0, Y: 1, T: 4300},
		{X: 0, Y: 2, T: 6100},
	})
	require.Len(t, *stats, 3)
	assert.Equal(t, 1, (*stats)[1].EventCount)
	assert.Equal(t, 2, (*stats)[2].EventCount)
	assert.True(t, (*stats)[2].Recording)
}

func TestOutOfRangeEventsDropped(t *testing.T) {
	acc, _, frames, _ := newTestAccumulator(4, 4)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 4, Y: 1, T: 10},  // x == width
		{X: 1, Y: 9, T: 20},  // y > height
		{X: 0, Y: 0, T: 2500},
	})

	f := frames.Latest()
	require.NotNil(t, f)
	assert.Equal(t, 1, countSet(f))
	assert.True(t, pixelSet(f, 1, 1))
}

func TestEventsDroppedWithoutGeometry(t *testing.T) {
	rec := new(fakeRecorder)
	frames := NewStore()
	acc := New(testWindowUs, rec, frames)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 2, Y: 2, T: 5000},
	})

	assert.Nil(t, frames.Latest())
	assert.Empty(t, rec.windows)
}

func TestResetDiscardsOpenWindow(t *testing.T) {
	acc, rec, _, stats := newTestAccumulator(4, 4)
	rec.enabled = true

	acc.ProcessChunk(event.Chunk{{X: 1, Y: 1, T: 0}})

	acc.RequestReset()
	acc.applyPending()

	// Nothing was finalized or persisted for the discarded window, and
	// frame numbering restarts.
	assert.Empty(t, rec.windows)
	assert.Empty(t, *stats)

	acc.ProcessChunk(event.Chunk{
		{X: 2, Y: 2, T: 50000},
		{X: 3, Y: 3, T: 53000},
	})
	require.Len(t, *stats, 1)
	assert.Equal(t, 0, (*stats)[0].FrameIndex)
	assert.Equal(t, int64(50000), (*stats)[0].WindowStartUs)
	require.Len(t, rec.windows, 1)
	assert.Equal(t, 1, rec.windows[0].index)
}

func TestRecordingToggleAppliesAtNextBoundary(t *testing.T) {
	acc, rec, _, _ := newTestAccumulator(4, 4)

	// Recording turned on mid-window: the live window keeps the flag it
	// was opened with, so it is not persisted.
	acc.ProcessChunk(event.Chunk{{X: 1, Y: 1, T: 0}})
	rec.enabled = true
	acc.ProcessChunk(event.Chunk{{X: 2, Y: 2, T: 500}})

	acc.ProcessChunk(event.Chunk{{X: 3, Y: 3, T: 2100}})
	assert.Empty(t, rec.windows, "window opened before the toggle must not be persisted")

	// The next window was opened with recording on and captures all of
	// its events.
	acc.ProcessChunk(event.Chunk{{X: 0, Y: 0, T: 4100}})
	require.Len(t, rec.windows, 1)
	assert.Equal(t, int64(2000), rec.windows[0].startUs)
	assert.Equal(t, []event.Event{{X: 3, Y: 3, T: 2100}}, rec.windows[0].events)
}

func TestRecordingToggleOffKeepsCurrentWindow(t *testing.T) {
	acc, rec, _, _ := newTestAccumulator(4, 4)
	rec.enabled = true

	acc.ProcessChunk(event.Chunk{{X: 1, Y: 1, T: 0}})
	rec.enabled = false
	acc.ProcessChunk(event.Chunk{{X: 2, Y: 2, T: 2500}})

	// The window that was recording when opened is still persisted.
	require.Len(t, rec.windows, 1)
	assert.Equal(t, []event.Event{{X: 1, Y: 1, T: 0}}, rec.windows[0].events)

	// Later windows are not.
	acc.ProcessChunk(event.Chunk{{X: 2, Y: 2, T: 9000}})
	assert.Len(t, rec.windows, 1)
}

func TestRecordingResetRestartsNumbering(t *testing.T) {
	acc, rec, _, _ := newTestAccumulator(4, 4)
	rec.enabled = true

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 1, Y: 1, T: 2100},
		{X: 1, Y: 1, T: 4100},
	})
	require.Len(t, rec.windows, 2)
	assert.Equal(t, 1, rec.windows[0].index)
	assert.Equal(t, 2, rec.windows[1].index)

	acc.RequestRecordingReset()
	acc.applyPending()

	acc.ProcessChunk(event.Chunk{{X: 1, Y: 1, T: 6100}})
	require.Len(t, rec.windows, 3)
	assert.Equal(t, 1, rec.windows[2].index, "numbering restarts after a recording reset")

	// The window boundary state was untouched by the recording reset.
	assert.Equal(t, int64(4000), rec.windows[2].startUs)
}

func TestStoreSnapshotIsIndependent(t *testing.T) {
	acc, _, frames, _ := newTestAccumulator(4, 4)

	acc.ProcessChunk(event.Chunk{
		{X: 1, Y: 1, T: 0},
		{X: 2, Y: 2, T: 2100},
	})

	snap := frames.Latest()
	require.NotNil(t, snap)
	require.True(t, pixelSet(snap, 1, 1))

	// More accumulation must not mutate an already handed out snapshot.
	acc.ProcessChunk(event.Chunk{{X: 0, Y: 0, T: 2200}})
	assert.True(t, pixelSet(snap, 1, 1))
	assert.Equal(t, 1, countSet(snap))
}

func TestRunConsumesUntilQueueClosed(t *testing.T) {
	acc, _, frames, stats := newTestAccumulator(4, 4)

	q := chunkqueue.New(10)
	q.Enqueue(event.Chunk{{X: 1, Y: 1, T: 0}})
	q.Enqueue(event.Chunk{{X: 2, Y: 2, T: 2100}})
	q.Close()

	done := make(chan struct{})
	go func() {
		acc.Run(q)
		close(done)
	}()
	<-done

	require.Len(t, *stats, 1)
	assert.NotNil(t, frames.Latest())
}
