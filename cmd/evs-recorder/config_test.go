package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openevs/evs-recorder/device"
	"github.com/openevs/evs-recorder/telemetry"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		EventInput:        "/var/run/evs-events",
		OutputDir:         "/var/spool/evs",
		WindowUs:          2000,
		QueueSize:         200,
		MinDiskSpace:      200,
		FrameLogPerSecond: 2,
		Display:           false,
		Simulate:          false,
		Sim: device.SimConfig{
			Width:         640,
			Height:        480,
			ChunkEvents:   64,
			ChunkPeriodUs: 1000,
		},
		MQTT: telemetry.Config{
			Broker:   "",
			Topic:    "evs/frames",
			ClientID: "evs-recorder",
		},
	}, *conf)
}

func TestAllSet(t *testing.T) {
	// All config set at non-default values.
	config := []byte(`
event-input: "/some/sock"
output-dir: "/some/where"
window-us: 5000
queue-size: 32
min-disk-space: 321
frame-log-per-second: 4
display: true
simulate: true
sim:
    width: 320
    height: 240
    chunk-events: 16
    chunk-period-us: 500
mqtt:
    broker: "tcp://localhost:1883"
    topic: "lab/evs"
    client-id: "bench-rig"
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		EventInput:        "/some/sock",
		OutputDir:         "/some/where",
		WindowUs:          5000,
		QueueSize:         32,
		MinDiskSpace:      321,
		FrameLogPerSecond: 4,
		Display:           true,
		Simulate:          true,
		Sim: device.SimConfig{
			Width:         320,
			Height:        240,
			ChunkEvents:   16,
			ChunkPeriodUs: 500,
		},
		MQTT: telemetry.Config{
			Broker:   "tcp://localhost:1883",
			Topic:    "lab/evs",
			ClientID: "bench-rig",
		},
	}, *conf)
}

func TestInvalidWindowStopsConfigParsing(t *testing.T) {
	conf, err := ParseConfig([]byte("window-us: 0\n"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "window-us must be positive")
}

func TestInvalidQueueSizeStopsConfigParsing(t *testing.T) {
	conf, err := ParseConfig([]byte("queue-size: -1\n"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "queue-size must be positive")
}
