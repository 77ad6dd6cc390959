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

package device

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/openevs/evs-recorder/event"
)

// SimConfig configures the simulated event camera.
type SimConfig struct {
	Width         int   `yaml:"width"`
	Height        int   `yaml:"height"`
	ChunkEvents   int   `yaml:"chunk-events"`
	ChunkPeriodUs int64 `yaml:"chunk-period-us"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Width:         640,
		Height:        480,
		ChunkEvents:   64,
		ChunkPeriodUs: 1000,
	}
}

// OpenSimulated returns a synthetic event camera for development and tests:
// a dot orbits the sensor centre while uniform noise events fire across the
// frame. Timestamps advance with the wall clock in microseconds.
func OpenSimulated(conf SimConfig) (Device, error) {
	if conf.Width <= 0 || conf.Height <= 0 {
		return nil, fmt.Errorf("invalid simulated geometry %dx%d", conf.Width, conf.Height)
	}
	return &simDevice{
		conf:   conf,
		biases: newSimBiases(),
		stop:   make(chan struct{}),
	}, nil
}

type simDevice struct {
	conf     SimConfig
	biases   *simBiases
	listener func([]event.Event)
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

func (d *simDevice) Geometry() (int, int) {
	return d.conf.Width, d.conf.Height
}

func (d *simDevice) Listen(fn func(events []event.Event)) {
	d.listener = fn
}

func (d *simDevice) Start() error {
	if d.listener == nil {
		return fmt.Errorf("no listener installed")
	}
	if d.started {
		return nil
	}
	d.started = true
	d.wg.Add(1)
	go d.generate()
	return nil
}

func (d *simDevice) Stop() error {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
	return nil
}

func (d *simDevice) Close() error {
	return d.Stop()
}

func (d *simDevice) Biases() (BiasFacility, bool) {
	return d.biases, true
}

func (d *simDevice) generate() {
	defer d.wg.Done()

	period := time.Duration(d.conf.ChunkPeriodUs) * time.Microsecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	epoch := time.Now()
	cx := float64(d.conf.Width) / 2
	cy := float64(d.conf.Height) / 2
	radius := math.Min(cx, cy) * 0.8

	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			endUs := now.Sub(epoch).Microseconds()
			startUs := endUs - d.conf.ChunkPeriodUs
			if startUs < 0 {
				startUs = 0
			}
			d.listener(d.makeChunk(rng, startUs, endUs, cx, cy, radius))
		}
	}
}

// makeChunk produces events with timestamps spread evenly across
// [startUs, endUs) so they stay non-decreasing across chunks.
func (d *simDevice) makeChunk(rng *rand.Rand, startUs, endUs int64, cx, cy, radius float64) []event.Event {
	n := d.conf.ChunkEvents
	events := make([]event.Event, 0, n)
	span := endUs - startUs
	for i := 0; i < n; i++ {
		t := startUs + span*int64(i)/int64(n)
		var x, y int
		if i%4 == 0 {
			// Noise event.
			x = rng.Intn(d.conf.Width)
			y = rng.Intn(d.conf.Height)
		} else {
			// One revolution per second.
			angle := 2 * math.Pi * float64(t%1e6) / 1e6
			x = int(cx + radius*math.Cos(angle))
			y = int(cy + radius*math.Sin(angle))
		}
		events = append(events, event.Event{X: uint16(x), Y: uint16(y), T: t})
	}
	return events
}

// simBiases mimics the bias table of a real sensor, including one
// read-only entry.
type simBiases struct {
	mu     sync.Mutex
	values map[string]int
	info   map[string]BiasInfo
}

func newSimBiases() *simBiases {
	return &simBiases{
		values: map[string]int{
			"bias_diff":     69,
			"bias_diff_on":  115,
			"bias_diff_off": 52,
			"bias_fo":       74,
			"bias_hpf":      0,
			"bias_refr":     45,
		},
		info: map[string]BiasInfo{
			"bias_diff":     {Min: 0, Max: 255, Modifiable: true, Description: "differential reference", Category: "contrast"},
			"bias_diff_on":  {Min: 0, Max: 140, Modifiable: true, Description: "ON threshold", Category: "contrast"},
			"bias_diff_off": {Min: 0, Max: 100, Modifiable: true, Description: "OFF threshold", Category: "contrast"},
			"bias_fo":       {Min: 0, Max: 255, Modifiable: true, Description: "photoreceptor follower", Category: "bandwidth"},
			"bias_hpf":      {Min: 0, Max: 255, Modifiable: true, Description: "high-pass filter", Category: "bandwidth"},
			"bias_refr":     {Min: 0, Max: 255, Modifiable: false, Description: "refractory period", Category: "timing"},
		},
	}
}

func (b *simBiases) All() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := make(map[string]int, len(b.values))
	for name, value := range b.values {
		all[name] = value
	}
	return all
}

func (b *simBiases) Info(name string) (BiasInfo, bool) {
	info, ok := b.info[name]
	return info, ok
}

func (b *simBiases) Get(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[name]
}

func (b *simBiases) Set(name string, value int) bool {
	info, ok := b.info[name]
	if !ok || !info.Modifiable || value < info.Min || value > info.Max {
		return false
	}
	b.mu.Lock()
	b.values[name] = value
	b.mu.Unlock()
	return true
}
