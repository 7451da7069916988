// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultPath is where the binaries look for their configuration.
const DefaultPath = "./imu_tester_config.txt"

// Config holds all application configuration values.
type Config struct {
	// IMU Hardware
	SPIDevice     string
	SPISpeedHz    int64
	CSPin         string
	DRDYPin       string
	InterruptLine int // GPIO number of the data-ready line; 0 uses DRDY_PIN

	// MQTT
	MQTTBroker          string
	MQTTClientIDTester  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicResults string

	// Web Server
	WebServerPort int

	// Test parameters
	SampleQuota      int
	RateTolerance    float64
	OutlierThreshold float64
	InitMultiRuns    int
	ScenarioFile     string // YAML scenario list; empty runs the built-in suite
	DumpSamples      bool
	Simulate         bool

	LogLevel string
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		SPIDevice:           "/dev/spidev0.0",
		SPISpeedHz:          1_000_000,
		DRDYPin:             "GPIO6",
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDTester:  "imu-tester",
		MQTTClientIDConsole: "imu-tester-console",
		MQTTClientIDWeb:     "imu-tester-web",
		TopicResults:        "imu_tester/results",
		WebServerPort:       8080,
		SampleQuota:         10000,
		RateTolerance:       0.05,
		OutlierThreshold:    5,
		InitMultiRuns:       100,
		LogLevel:            "info",
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal/Set and Get.
//   - configOnce: ensures the global is only set once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override applies one KEY=VALUE pair after loading, e.g. from a command
// line flag, and revalidates.
func (c *Config) Override(key, value string) error {
	if err := c.setValue(key, value); err != nil {
		return err
	}
	return c.validate()
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// IMU Hardware
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "SPI_SPEED_HZ":
		c.SPISpeedHz, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SPI_SPEED_HZ %q: %w", value, err)
		}
	case "CS_PIN":
		c.CSPin = value
	case "DRDY_PIN":
		c.DRDYPin = value
	case "INTERRUPT_LINE":
		c.InterruptLine, err = parseInt(key, value, 0, 1023)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TESTER":
		c.MQTTClientIDTester = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_RESULTS":
		c.TopicResults = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Test parameters
	case "SAMPLE_QUOTA":
		c.SampleQuota, err = parseInt(key, value, 1, 1_000_000)
	case "RATE_TOLERANCE":
		c.RateTolerance, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_TOLERANCE %q: %w", value, err)
		}
	case "OUTLIER_THRESHOLD":
		c.OutlierThreshold, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid OUTLIER_THRESHOLD %q: %w", value, err)
		}
	case "INIT_MULTI_RUNS":
		c.InitMultiRuns, err = parseInt(key, value, 1, 100_000)
	case "SCENARIO_FILE":
		c.ScenarioFile = value
	case "DUMP_SAMPLES":
		c.DumpSamples, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DUMP_SAMPLES %q: %w", value, err)
		}
	case "SIMULATE":
		c.Simulate, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIMULATE %q: %w", value, err)
		}

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.TopicResults == "" {
		return fmt.Errorf("TOPIC_RESULTS is required")
	}
	if !c.Simulate && c.SPIDevice == "" {
		return fmt.Errorf("SPI_DEVICE is required unless SIMULATE=true")
	}
	if c.SPISpeedHz <= 0 {
		return fmt.Errorf("SPI_SPEED_HZ must be positive, got %d", c.SPISpeedHz)
	}
	if c.RateTolerance <= 0 || c.RateTolerance >= 1 {
		return fmt.Errorf("RATE_TOLERANCE must be in (0, 1), got %g", c.RateTolerance)
	}
	if c.OutlierThreshold <= 0 {
		return fmt.Errorf("OUTLIER_THRESHOLD must be positive, got %g", c.OutlierThreshold)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Set installs an already loaded configuration as the global one. Like
// InitGlobal it only takes effect once.
func Set(cfg *Config) {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = cfg
	})
}

// Get returns the global configuration instance.
// InitGlobal or Set must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
