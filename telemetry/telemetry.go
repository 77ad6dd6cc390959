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

package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openevs/evs-recorder/window"
)

type Config struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client-id"`
}

func DefaultConfig() Config {
	return Config{
		Topic:    "evs/frames",
		ClientID: "evs-recorder",
	}
}

type windowMessage struct {
	FrameIndex    int   `json:"frame_index"`
	WindowStartUs int64 `json:"window_start_us"`
	EventCount    int   `json:"event_count"`
	QueueDepth    int   `json:"queue_depth"`
	Recording     bool  `json:"recording"`
}

// Publisher sends per-window stats to an MQTT broker. Publishing is fire
// and forget: the pipeline's windowing consumer must never wait on the
// network.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// Connect dials the configured broker. The returned publisher is safe to
// share; Publish calls do not block on delivery.
func Connect(conf Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(2 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", conf.Broker, token.Error())
	}
	return &Publisher{client: client, topic: conf.Topic}, nil
}

// PublishWindow sends one finalized window's stats, QoS 0.
func (p *Publisher) PublishWindow(stats window.Stats) error {
	msg, err := encodeWindow(stats)
	if err != nil {
		return err
	}
	p.client.Publish(p.topic, 0, false, msg)
	return nil
}

func encodeWindow(stats window.Stats) ([]byte, error) {
	return json.Marshal(windowMessage{
		FrameIndex:    stats.FrameIndex,
		WindowStartUs: stats.WindowStartUs,
		EventCount:    stats.EventCount,
		QueueDepth:    stats.QueueDepth,
		Recording:     stats.Recording,
	})
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
