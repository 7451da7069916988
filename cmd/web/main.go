// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_tester/internal/app"
	"github.com/relabs-tech/imu_tester/internal/config"
)

func main() {
	log.Info("starting imu-tester web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(config.DefaultPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	log.SetLevel(cfg.Level())

	log.Info("Note: results appear once a tester publishes them (./imu_tester run)")

	if err := app.RunWeb(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
