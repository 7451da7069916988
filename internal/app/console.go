// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/config"
	"github.com/relabs-tech/imu_tester/internal/report"
)

// RunConsole prints every result published by a tester until interrupted.
func RunConsole(cfg *config.Config) error {
	client, err := report.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	err = report.Subscribe(client, cfg.TopicResults, func(res acquire.RunResult) {
		report.PrintResult(os.Stdout, res)
	})
	if err != nil {
		client.Disconnect(250)
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
