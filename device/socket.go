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
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/openevs/evs-recorder/event"
)

// Wire format spoken by event driver processes: one geometry packet on
// connect (width and height as little-endian uint32), then one packet per
// chunk with 12 bytes per event (x uint16, y uint16, t int64).
const (
	geometrySize = 8
	eventSize    = 12

	maxPacket = 64 * 1024
)

// OpenSocket connects to an event driver process listening on a unixpacket
// socket. ErrDeviceUnavailable is returned when no driver is listening
// there.
func OpenSocket(path string) (Device, error) {
	conn, err := net.DialUnix("unixpacket", nil, &net.UnixAddr{
		Net:  "unixpacket",
		Name: path,
	})
	if err != nil {
		return nil, fmt.Errorf("no event driver at %s: %w", path, ErrDeviceUnavailable)
	}

	buf := make([]byte, geometrySize)
	if _, err := conn.Read(buf); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading sensor geometry: %w", err)
	}
	width := int(binary.LittleEndian.Uint32(buf[0:4]))
	height := int(binary.LittleEndian.Uint32(buf[4:8]))
	if width <= 0 || height <= 0 {
		conn.Close()
		return nil, fmt.Errorf("driver reported invalid geometry %dx%d", width, height)
	}

	return &socketDevice{
		conn:   conn,
		width:  width,
		height: height,
	}, nil
}

type socketDevice struct {
	conn     *net.UnixConn
	width    int
	height   int
	listener func([]event.Event)
	muted    atomic.Bool
	wg       sync.WaitGroup
	started  bool
}

func (d *socketDevice) Geometry() (int, int) {
	return d.width, d.height
}

func (d *socketDevice) Listen(fn func(events []event.Event)) {
	d.listener = fn
}

func (d *socketDevice) Start() error {
	if d.listener == nil {
		return fmt.Errorf("no listener installed")
	}
	if d.started {
		return nil
	}
	d.started = true
	d.wg.Add(1)
	go d.readLoop()
	return nil
}

func (d *socketDevice) Stop() error {
	d.muted.Store(true)
	return nil
}

func (d *socketDevice) Close() error {
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

func (d *socketDevice) Biases() (BiasFacility, bool) {
	// Driver processes speaking the socket protocol carry no bias
	// channel; biases are adjusted on the driver side.
	return nil, false
}

func (d *socketDevice) readLoop() {
	defer d.wg.Done()
	buf := make([]byte, maxPacket)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return
		}
		if d.muted.Load() {
			continue
		}
		if n%eventSize != 0 {
			log.Printf("dropping malformed event packet (%d bytes)", n)
			continue
		}
		events := decodeEvents(buf[:n])
		if len(events) > 0 {
			d.listener(events)
		}
	}
}

func decodeEvents(buf []byte) []event.Event {
	events := make([]event.Event, len(buf)/eventSize)
	for i := range events {
		rec := buf[i*eventSize:]
		events[i] = event.Event{
			X: binary.LittleEndian.Uint16(rec[0:2]),
			Y: binary.LittleEndian.Uint16(rec[2:4]),
			T: int64(binary.LittleEndian.Uint64(rec[4:12])),
		}
	}
	return events
}

// EncodeGeometry and EncodeEvents build the packets a driver process sends.
// They live here so drivers and tests share one definition of the format.
func EncodeGeometry(width, height int) []byte {
	buf := make([]byte, geometrySize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(height))
	return buf
}

func EncodeEvents(events []event.Event) []byte {
	buf := make([]byte, len(events)*eventSize)
	for i, ev := range events {
		rec := buf[i*eventSize:]
		binary.LittleEndian.PutUint16(rec[0:2], ev.X)
		binary.LittleEndian.PutUint16(rec[2:4], ev.Y)
		binary.LittleEndian.PutUint64(rec[4:12], uint64(ev.T))
	}
	return buf
}
