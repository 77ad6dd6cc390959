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
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/openevs/evs-recorder/device"
	"github.com/openevs/evs-recorder/session"
	"github.com/openevs/evs-recorder/telemetry"
)

const watchdogInterval = 5 * time.Second

var version = "<not set>"

type Args struct {
	ConfigFile  string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps  bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Simulate    bool   `arg:"--simulate" help:"use the built-in event generator instead of a camera"`
	BiasDiff    *int   `arg:"--bias-diff" help:"set bias_diff on startup"`
	BiasDiffOn  *int   `arg:"--bias-diff-on" help:"set bias_diff_on on startup"`
	BiasDiffOff *int   `arg:"--bias-diff-off" help:"set bias_diff_off on startup"`
	BiasFo      *int   `arg:"--bias-fo" help:"set bias_fo on startup"`
	BiasHpf     *int   `arg:"--bias-hpf" help:"set bias_hpf on startup"`
	PrintBias   bool   `arg:"--print-bias" help:"print the camera bias table on startup"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/evs-recorder.yaml"
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
	if args.Simulate {
		conf.Simulate = true
	}
	logConfig(conf)

	sess := session.New(session.Config{
		WindowUs:          conf.WindowUs,
		QueueSize:         conf.QueueSize,
		OutputDir:         conf.OutputDir,
		MinDiskSpaceMB:    conf.MinDiskSpace,
		FrameLogPerSecond: conf.FrameLogPerSecond,
	}, deviceOpener(conf))

	if conf.MQTT.Broker != "" {
		pub, err := telemetry.Connect(conf.MQTT)
		if err != nil {
			log.Printf("telemetry unavailable: %v", err)
		} else {
			defer pub.Close()
			sess.SetTelemetry(pub)
		}
	}

	log.Println("starting d-bus service")
	if err := startService(sess); err != nil {
		log.Printf("d-bus service unavailable: %v", err)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("received %v, shutting down", sig)
		sess.Shutdown()
	}()

	go watchdog()

	if err := applyStartupBiases(sess, args); err != nil {
		return err
	}

	lines := make(chan string)
	go readCommands(os.Stdin, lines)

	log.Print("ready (h for commands)")
	return commandLoop(sess, conf, lines)
}

// commandLoop runs until the session shuts down, dispatching stdin
// commands and (when enabled) pumping the display from the main
// goroutine. Stdin EOF quits, so the daemon works under a pipe.
func commandLoop(sess *session.Controller, conf *Config, lines <-chan string) error {
	var disp *display
	if conf.Display {
		disp = newDisplay()
		defer disp.close()
	}

	for sess.Running() {
		if disp != nil {
			disp.show(sess.Frames().Latest())
			if key := disp.waitKey(30); key > 0 {
				handleKey(sess, rune(key))
			}
			select {
			case line, ok := <-lines:
				if !ok {
					sess.Shutdown()
					return nil
				}
				handleLine(sess, line)
			default:
			}
			continue
		}

		select {
		case line, ok := <-lines:
			if !ok {
				sess.Shutdown()
				return nil
			}
			handleLine(sess, line)
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// applyStartupBiases turns the camera on and applies any bias values
// given on the command line. Without bias flags the camera stays off
// until an explicit command turns it on.
func applyStartupBiases(sess *session.Controller, args Args) error {
	presets := []struct {
		name  string
		value *int
	}{
		{"bias_diff", args.BiasDiff},
		{"bias_diff_on", args.BiasDiffOn},
		{"bias_diff_off", args.BiasDiffOff},
		{"bias_fo", args.BiasFo},
		{"bias_hpf", args.BiasHpf},
	}

	any := args.PrintBias
	for _, p := range presets {
		if p.value != nil {
			any = true
		}
	}
	if !any {
		return nil
	}

	if err := sess.Open(); err != nil {
		return err
	}
	for _, p := range presets {
		if p.value == nil {
			continue
		}
		if err := sess.SetBias(p.name, *p.value); err != nil {
			return err
		}
	}
	if args.PrintBias {
		return sess.PrintAllBiases()
	}
	return nil
}

func deviceOpener(conf *Config) device.OpenFunc {
	if conf.Simulate {
		return func() (device.Device, error) {
			return device.OpenSimulated(conf.Sim)
		}
	}
	return func() (device.Device, error) {
		return device.OpenSocket(conf.EventInput)
	}
}

func watchdog() {
	for {
		daemon.SdNotify(false, "WATCHDOG=1")
		time.Sleep(watchdogInterval)
	}
}

func logConfig(conf *Config) {
	log.Printf("event input: %s", conf.EventInput)
	log.Printf("output dir: %s", conf.OutputDir)
	log.Printf("window length: %dus", conf.WindowUs)
	log.Printf("queue size: %d chunks", conf.QueueSize)
	log.Printf("minimum disk space: %d", conf.MinDiskSpace)
	if conf.Simulate {
		log.Printf("simulated camera: %dx%d, %d events every %dus",
			conf.Sim.Width, conf.Sim.Height, conf.Sim.ChunkEvents, conf.Sim.ChunkPeriodUs)
	}
	if conf.MQTT.Broker != "" {
		log.Printf("mqtt broker: %s topic: %s", conf.MQTT.Broker, conf.MQTT.Topic)
	}
}
