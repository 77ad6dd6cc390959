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

package main

import (
	"log"

	"gocv.io/x/gocv"

	"github.com/openevs/evs-recorder/window"
)

// display shows the most recent accumulated frame in an OpenCV window.
// All calls must come from the same goroutine (OpenCV HighGUI rule).
type display struct {
	win *gocv.Window
}

func newDisplay() *display {
	return &display{win: gocv.NewWindow("evs-recorder")}
}

// show renders a frame snapshot. A nil frame (camera off, or no window
// finalized yet) leaves the previous image up.
func (d *display) show(f *window.Frame) {
	if f == nil {
		return
	}
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC1, f.Pix)
	if err != nil {
		log.Printf("display: %v", err)
		return
	}
	defer mat.Close()
	d.win.IMShow(mat)
}

// waitKey pumps the GUI event loop and returns the pressed key, or -1.
func (d *display) waitKey(ms int) int {
	return d.win.WaitKey(ms)
}

func (d *display) close() {
	if err := d.win.Close(); err != nil {
		log.Printf("display close: %v", err)
	}
}
