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

package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/openevs/evs-recorder/event"
)

var ErrAlreadyRecording = errors.New("recording already on")

// FileRecorder writes one text file per finalized recorded window,
// named frame_<6 digit index>_t0_<window start>us.txt, with one
// "x y" line per event. The output directory is switched atomically
// on Start so a window being written never sees a half-updated path.
type FileRecorder struct {
	mu           sync.Mutex
	dir          string
	enabled      atomic.Bool
	minDiskSpace uint64
}

// NewFileRecorder returns a recorder that refuses to start while less than
// minDiskSpaceMB megabytes are free on the output filesystem.
func NewFileRecorder(minDiskSpaceMB uint64) *FileRecorder {
	return &FileRecorder{minDiskSpace: minDiskSpaceMB}
}

// NewRunDir returns a timestamped directory name for one recording session.
func NewRunDir(baseDir string) string {
	return filepath.Join(baseDir, time.Now().Format("run_20060102_150405"))
}

// Start enables recording into dir, creating it first. It fails, leaving
// recording off, if recording is already on, the directory cannot be
// created, or disk space is too low.
func (r *FileRecorder) Start(dir string) error {
	if r.enabled.Load() {
		return ErrAlreadyRecording
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := r.checkDiskSpace(dir); err != nil {
		return err
	}
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()
	r.enabled.Store(true)
	return nil
}

// Stop disables recording. Stopping an already stopped recorder is a no-op.
// The window being accumulated when recording stops is still persisted:
// the recording flag only changes behaviour from the next window boundary.
func (r *FileRecorder) Stop() {
	r.enabled.Store(false)
}

func (r *FileRecorder) Enabled() bool {
	return r.enabled.Load()
}

// Dir returns the active output directory.
func (r *FileRecorder) Dir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

func (r *FileRecorder) WriteWindow(index int, startUs int64, events []event.Event) error {
	dir := r.Dir()
	if dir == "" {
		return nil
	}

	name := filepath.Join(dir, fmt.Sprintf("frame_%06d_t0_%dus.txt", index, startUs))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, ev := range events {
		fmt.Fprintf(w, "%d %d\n", ev.X, ev.Y)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *FileRecorder) checkDiskSpace(dir string) error {
	if r.minDiskSpace == 0 {
		return nil
	}
	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return fmt.Errorf("problem checking disk space: %w", err)
	}
	if fs.Bavail*uint64(fs.Bsize)/1024/1024 < r.minDiskSpace {
		return errors.New("not enough free disk space to start recording")
	}
	return nil
}
