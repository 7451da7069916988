// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report publishes run results over MQTT and renders them for humans.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_tester/internal/acquire"
)

// publishTimeout bounds a single publish. Results are retained by the broker so
// a late subscriber still sees the last run of every scenario.
const publishTimeout = 5 * time.Second

// ResultTopic returns the topic one scenario's results are published on.
func ResultTopic(base, scenario string) string {
	return strings.TrimSuffix(base, "/") + "/" + scenario
}

// Wildcard returns the subscription filter matching every ResultTopic of base.
func Wildcard(base string) string {
	return strings.TrimSuffix(base, "/") + "/+"
}

// Connect opens a client to broker, waiting for the connection to come up.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(publishTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// Publisher sends RunResult JSON documents to the results topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends one result, retained, on the scenario's topic.
func (p *Publisher) Publish(res acquire.RunResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", res.Scenario, err)
	}
	topic := ResultTopic(p.topic, res.Scenario)
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Debugf("report: published %s (%d bytes)", topic, len(payload))
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Subscribe delivers every result published under topic to fn. Messages that
// do not decode are logged and dropped.
func Subscribe(client mqtt.Client, topic string, fn func(acquire.RunResult)) error {
	filter := Wildcard(topic)
	token := client.Subscribe(filter, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var res acquire.RunResult
		if err := json.Unmarshal(msg.Payload(), &res); err != nil {
			log.Warnf("report: %s: unmarshal error: %v", msg.Topic(), err)
			return
		}
		fn(res)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	log.Infof("report: subscribed to %s", filter)
	return nil
}
