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

// evs-simd is a stand-in event camera driver. It listens on the event
// socket and streams simulated events to whichever recorder connects,
// speaking the same wire protocol a real driver would.
package main

import (
	"log"
	"net"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/openevs/evs-recorder/device"
	"github.com/openevs/evs-recorder/event"
)

const chunksPerSdNotify = 500

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/evs-simd.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	for {
		// One recorder at a time: listen, serve, listen again.
		os.Remove(conf.EventOutput)
		listener, err := net.Listen("unixpacket", conf.EventOutput)
		if err != nil {
			return err
		}
		log.Print("waiting for recorder connection")

		conn, err := listener.Accept()
		if err != nil {
			log.Printf("socket accept failed: %v", err)
			listener.Close()
			continue
		}
		listener.Close()

		err = serveConn(conn, conf)
		log.Printf("recorder connection ended with: %v", err)
	}
}

// serveConn streams simulated chunks to one recorder until the connection
// drops. The simulated device delivers chunks on its own goroutine; writes
// happen there, and a write error stops the device and unblocks us.
func serveConn(conn net.Conn, conf *Config) error {
	defer conn.Close()

	if _, err := conn.Write(device.EncodeGeometry(conf.Sim.Width, conf.Sim.Height)); err != nil {
		return err
	}

	dev, err := device.OpenSimulated(conf.Sim)
	if err != nil {
		return err
	}
	defer dev.Close()

	done := make(chan error, 1)
	chunkCount := 0
	dev.Listen(func(events []event.Event) {
		if chunkCount++; chunkCount >= chunksPerSdNotify {
			daemon.SdNotify(false, "WATCHDOG=1")
			chunkCount = 0
		}
		if _, err := conn.Write(device.EncodeEvents(events)); err != nil {
			select {
			case done <- err:
			default:
			}
		}
	})

	log.Print("new recorder connection, streaming events")
	if err := dev.Start(); err != nil {
		return err
	}
	return <-done
}

func logConfig(conf *Config) {
	log.Printf("event output: %s", conf.EventOutput)
	log.Printf("geometry: %dx%d", conf.Sim.Width, conf.Sim.Height)
	log.Printf("chunks: %d events every %dus", conf.Sim.ChunkEvents, conf.Sim.ChunkPeriodUs)
}
