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

import "sync"

// Frame is a single channel image, one byte per pixel, row major. Touched
// pixels hold 255, untouched pixels 0.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

func newFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// Copy returns an independent copy of the frame.
func (f *Frame) Copy() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Pix: make([]uint8, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// Store holds the most recently finalized frame. It is the only shared
// state between the windowing consumer and the display loop. Frames are
// copied on both write and read so neither side ever holds the lock while
// rendering or accumulating.
type Store struct {
	mu     sync.Mutex
	latest *Frame
}

func NewStore() *Store {
	return &Store{}
}

// Set replaces the latest frame with a copy of f.
func (s *Store) Set(f *Frame) {
	c := f.Copy()
	s.mu.Lock()
	s.latest = c
	s.mu.Unlock()
}

// Latest returns a copy of the most recent finalized frame, or nil if no
// window has been finalized yet.
func (s *Store) Latest() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	return s.latest.Copy()
}

// Clear forgets the latest frame.
func (s *Store) Clear() {
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}
