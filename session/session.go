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

package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/openevs/evs-recorder/bias"
	"github.com/openevs/evs-recorder/chunkqueue"
	"github.com/openevs/evs-recorder/device"
	"github.com/openevs/evs-recorder/event"
	"github.com/openevs/evs-recorder/loglimiter"
	"github.com/openevs/evs-recorder/recorder"
	"github.com/openevs/evs-recorder/telemetry"
	"github.com/openevs/evs-recorder/window"
)

var (
	ErrCameraAlreadyOn = errors.New("camera already on")
	ErrCameraOff       = errors.New("camera already off")
	ErrNotRecording    = errors.New("recording already off")
	ErrCameraRequired  = errors.New("camera must be on before using bias commands")
)

type Config struct {
	WindowUs          int64
	QueueSize         int
	OutputDir         string
	MinDiskSpaceMB    uint64
	FrameLogPerSecond float64
}

// Controller owns the device lifecycle, the chunk queue and the windowing
// consumer, and translates external commands into state transitions. All
// commands are serialized by one mutex so at most one lifecycle transition
// is ever in flight; the camera-on and recording flags are additionally
// atomics so the ingestion callback and the consumer read them without
// locks.
type Controller struct {
	mu   sync.Mutex
	conf Config
	open device.OpenFunc

	rec    *recorder.FileRecorder
	acc    *window.Accumulator
	frames *window.Store

	limiter   *loglimiter.Limiter
	publisher *telemetry.Publisher

	running  atomic.Bool
	cameraOn atomic.Bool

	// Per-open state, nil while the camera is off.
	dev          device.Device
	queue        *chunkqueue.Queue
	consumerDone chan struct{}
	biases       *bias.Controller

	// The step size survives camera off/on; the bias selection does not.
	stepIndex int
}

func New(conf Config, open device.OpenFunc) *Controller {
	logRate := conf.FrameLogPerSecond
	if logRate <= 0 {
		logRate = 2
	}
	s := &Controller{
		conf:    conf,
		open:    open,
		rec:     recorder.NewFileRecorder(conf.MinDiskSpaceMB),
		frames:  window.NewStore(),
		limiter: loglimiter.New(logRate, 5),
	}
	s.acc = window.New(conf.WindowUs, s.rec, s.frames)
	s.acc.SetOnWindow(s.onWindow)
	s.running.Store(true)
	return s
}

// SetTelemetry installs an optional stats publisher. Must be called before
// the first Open.
func (s *Controller) SetTelemetry(pub *telemetry.Publisher) {
	s.publisher = pub
}

// Frames exposes the latest-frame store for the display loop.
func (s *Controller) Frames() *window.Store {
	return s.frames
}

// Running reports whether the controller has been shut down.
func (s *Controller) Running() bool {
	return s.running.Load()
}

func (s *Controller) CameraOn() bool {
	return s.cameraOn.Load()
}

func (s *Controller) Recording() bool {
	return s.rec.Enabled()
}

func (s *Controller) RecordingDir() string {
	return s.rec.Dir()
}

// onWindow runs on the consumer goroutine for every finalized window.
func (s *Controller) onWindow(st window.Stats) {
	s.limiter.Printf("frame %d t0=%dus | events=%d | queue=%d | recording=%v",
		st.FrameIndex, st.WindowStartUs, st.EventCount, st.QueueDepth, st.Recording)
	if s.publisher != nil {
		if err := s.publisher.PublishWindow(st); err != nil {
			log.Printf("telemetry publish failed: %v", err)
		}
	}
}

// Open opens the camera, installs the ingestion callback, starts the
// windowing consumer and starts event delivery. On any failure the
// controller is left exactly as it was.
func (s *Controller) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cameraOn.Load() {
		return ErrCameraAlreadyOn
	}

	dev, err := s.open()
	if err != nil {
		if errors.Is(err, device.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("failed to open camera: %w", err)
	}

	width, height := dev.Geometry()
	s.acc.SetGeometry(width, height)
	s.acc.RequestReset()

	queue := chunkqueue.New(s.conf.QueueSize)
	done := make(chan struct{})
	go func() {
		s.acc.Run(queue)
		close(done)
	}()

	dev.Listen(func(events []event.Event) {
		// Runs on the driver's delivery goroutine. The only thing it
		// may do is copy and enqueue; Enqueue blocking on a full
		// queue is the backpressure path, and it returns immediately
		// (discarding) once the queue is closed.
		if !s.running.Load() || !s.cameraOn.Load() {
			return
		}
		chunk := event.CopyChunk(events)
		if len(chunk) == 0 {
			return
		}
		queue.Enqueue(chunk)
	})

	s.cameraOn.Store(true)
	if err := dev.Start(); err != nil {
		s.cameraOn.Store(false)
		queue.Close()
		<-done
		dev.Close()
		return fmt.Errorf("failed to start camera: %w", err)
	}

	s.dev = dev
	s.queue = queue
	s.consumerDone = done
	if facility, ok := dev.Biases(); ok {
		s.biases = bias.NewController(facility)
		s.biases.SetStepIndex(s.stepIndex)
	} else {
		log.Print("this device has no bias facility; bias commands unavailable")
	}

	log.Printf("camera on, resolution %dx%d", width, height)
	return nil
}

// Close stops the camera, discards queued chunks and waits for the
// windowing consumer to finish before returning.
func (s *Controller) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Controller) closeLocked() error {
	if !s.cameraOn.Load() {
		return ErrCameraOff
	}
	s.cameraOn.Store(false)
	s.acc.RequestReset()

	// Close the queue before the device: a driver goroutine blocked on
	// a full queue must be released before device teardown can join it.
	s.queue.Close()
	s.queue.Discard()

	if err := s.dev.Stop(); err != nil {
		log.Printf("stopping camera: %v", err)
	}
	if err := s.dev.Close(); err != nil {
		log.Printf("closing camera: %v", err)
	}
	<-s.consumerDone

	if s.biases != nil {
		s.stepIndex = s.biases.StepIndex()
	}
	s.dev = nil
	s.queue = nil
	s.consumerDone = nil
	s.biases = nil

	log.Print("camera off")
	return nil
}

// StartRecording begins persisting windows into a fresh timestamped
// directory under the configured output dir. Window numbering restarts
// from one.
func (s *Controller) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The reset must not be requested until the start is known to
	// proceed: a failed duplicate start would otherwise restart the
	// file numbering of the recording already in progress.
	if s.rec.Enabled() {
		return recorder.ErrAlreadyRecording
	}
	s.acc.RequestRecordingReset()

	dir := recorder.NewRunDir(s.conf.OutputDir)
	if err := s.rec.Start(dir); err != nil {
		return err
	}
	log.Printf("recording on, output dir: %s", dir)
	return nil
}

// StopRecording turns recording off. The window currently being
// accumulated keeps the recording flag it was opened with.
func (s *Controller) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rec.Enabled() {
		return ErrNotRecording
	}
	s.rec.Stop()
	log.Print("recording off")
	return nil
}

// Shutdown closes the camera if needed and marks the controller stopped.
// It is idempotent: the quit command and an interrupt signal share it.
func (s *Controller) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Swap(false) {
		return
	}
	if s.cameraOn.Load() {
		if err := s.closeLocked(); err != nil {
			log.Printf("closing camera on shutdown: %v", err)
		}
	}
	log.Print("exit requested")
}

func (s *Controller) withBiases(fn func(*bias.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cameraOn.Load() {
		return ErrCameraRequired
	}
	if s.biases == nil {
		return device.ErrBiasUnsupported
	}
	return fn(s.biases)
}

func (s *Controller) ListBiases(verbose bool) error {
	return s.withBiases(func(b *bias.Controller) error {
		b.List(verbose)
		return nil
	})
}

func (s *Controller) SelectBias(name string) error {
	return s.withBiases(func(b *bias.Controller) error {
		return b.Select(name)
	})
}

// AdjustBias nudges the selected bias by direction (+1 or -1) times the
// current step size.
func (s *Controller) AdjustBias(direction int) error {
	return s.withBiases(func(b *bias.Controller) error {
		return b.Adjust(direction)
	})
}

// SetBias writes an absolute, range-clamped bias value.
func (s *Controller) SetBias(name string, value int) error {
	return s.withBiases(func(b *bias.Controller) error {
		return b.Set(name, value)
	})
}

func (s *Controller) PrintSelectedBias() error {
	return s.withBiases(func(b *bias.Controller) error {
		return b.PrintSelected()
	})
}

func (s *Controller) PrintAllBiases() error {
	return s.withBiases(func(b *bias.Controller) error {
		b.PrintAll()
		return nil
	})
}

// CycleBiasStep works with the camera off too: the step size is session
// controller state that outlives any one camera session.
func (s *Controller) CycleBiasStep(direction int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.biases != nil {
		s.biases.CycleStep(direction)
		s.stepIndex = s.biases.StepIndex()
		return
	}
	s.stepIndex = bias.NextStepIndex(s.stepIndex, direction)
	log.Printf("bias step set to %d", bias.StepValue(s.stepIndex))
}
