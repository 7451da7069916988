package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const sample = `
# tester on the left IMU
SPI_DEVICE=/dev/spidev0.1
SPI_SPEED_HZ=8000000
INTERRUPT_LINE=25
MQTT_BROKER=tcp://broker:1883
TOPIC_RESULTS=lab/imu/results
SAMPLE_QUOTA=2000
RATE_TOLERANCE=0.1
DUMP_SAMPLES=true
LOG_LEVEL=Debug
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, "/dev/spidev0.1", cfg.SPIDevice)
	require.Equal(t, int64(8_000_000), cfg.SPISpeedHz)
	require.Equal(t, 25, cfg.InterruptLine)
	require.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	require.Equal(t, "lab/imu/results", cfg.TopicResults)
	require.Equal(t, 2000, cfg.SampleQuota)
	require.Equal(t, 0.1, cfg.RateTolerance)
	require.True(t, cfg.DumpSamples)
	require.Equal(t, log.DebugLevel, cfg.Level())

	// untouched keys keep their defaults
	require.Equal(t, 5.0, cfg.OutlierThreshold)
	require.Equal(t, 100, cfg.InitMultiRuns)
	require.Equal(t, "GPIO6", cfg.DRDYPin)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "FOO=bar",
		"missing value": "SPI_DEVICE",
		"bad int":       "SAMPLE_QUOTA=lots",
		"out of range":  "WEB_SERVER_PORT=70000",
		"bad tolerance": "RATE_TOLERANCE=1.5",
		"bad level":     "LOG_LEVEL=loud",
		"bad bool":      "DUMP_SAMPLES=maybe",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(line))
			require.Error(t, err)
		})
	}
}

func TestOverride(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Override("SIMULATE", "true"))
	require.NoError(t, cfg.Override("SPI_DEVICE", ""))
	require.True(t, cfg.Simulate)

	require.Error(t, cfg.Override("SIMULATE", "false"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu_tester_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2000, cfg.SampleQuota)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
