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
	"errors"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"github.com/openevs/evs-recorder/device"
	"github.com/openevs/evs-recorder/telemetry"
)

type Config struct {
	EventInput        string           `yaml:"event-input"`
	OutputDir         string           `yaml:"output-dir"`
	WindowUs          int64            `yaml:"window-us"`
	QueueSize         int              `yaml:"queue-size"`
	MinDiskSpace      uint64           `yaml:"min-disk-space"`
	FrameLogPerSecond float64          `yaml:"frame-log-per-second"`
	Display           bool             `yaml:"display"`
	Simulate          bool             `yaml:"simulate"`
	Sim               device.SimConfig `yaml:"sim"`
	MQTT              telemetry.Config `yaml:"mqtt"`
}

func (conf *Config) Validate() error {
	if conf.WindowUs <= 0 {
		return errors.New("window-us must be positive")
	}
	if conf.QueueSize <= 0 {
		return errors.New("queue-size must be positive")
	}
	if conf.OutputDir == "" {
		return errors.New("output-dir cannot be empty")
	}
	return nil
}

var defaultConfig = Config{
	EventInput:        "/var/run/evs-events",
	OutputDir:         "/var/spool/evs",
	WindowUs:          2000,
	QueueSize:         200,
	MinDiskSpace:      200,
	FrameLogPerSecond: 2,
	Display:           false,
	Simulate:          false,
	Sim:               device.DefaultSimConfig(),
	MQTT:              telemetry.DefaultConfig(),
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
