// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cmd is the command line of the imu_tester binary.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relabs-tech/imu_tester/internal/app"
	"github.com/relabs-tech/imu_tester/internal/config"
	"github.com/relabs-tech/imu_tester/internal/rate"
)

// EnvPrefix namespaces environment overrides, e.g. IMUTEST_SIMULATE=true.
const EnvPrefix = "IMUTEST"

// ErrSuiteFailed is returned by the run command when any scenario fails.
var ErrSuiteFailed = errors.New("test suite failed")

// flagKeys maps command line flags onto configuration file keys.
var flagKeys = map[string]string{
	"simulate":       "SIMULATE",
	"scenario-file":  "SCENARIO_FILE",
	"quota":          "SAMPLE_QUOTA",
	"tolerance":      "RATE_TOLERANCE",
	"threshold":      "OUTLIER_THRESHOLD",
	"init-runs":      "INIT_MULTI_RUNS",
	"dump-samples":   "DUMP_SAMPLES",
	"spi-device":     "SPI_DEVICE",
	"interrupt-line": "INTERRUPT_LINE",
	"broker":         "MQTT_BROKER",
	"topic":          "TOPIC_RESULTS",
	"port":           "WEB_SERVER_PORT",
	"log-level":      "LOG_LEVEL",
}

var RootCmd = &cobra.Command{
	Use:           "imu_tester",
	Short:         "acquisition timing tests for the MPU9250",
	Long:          "imu_tester runs timing scenarios against an MPU9250 and reports whether each one reached its target sample rate.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", config.DefaultPath, "configuration file")
	cmd.Flags().String("broker", "", "MQTT broker URL, empty disables publishing")
	cmd.Flags().String("topic", "", "MQTT results topic")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
}

func RunCmdFlags(cmd *cobra.Command) {
	commonFlags(cmd)
	cmd.Flags().Bool("simulate", false, "run against the simulated device")
	cmd.Flags().String("scenario-file", "", "YAML scenario list replacing the built-in suite")
	cmd.Flags().Int("quota", 0, "samples to collect per scenario")
	cmd.Flags().Float64("tolerance", 0, "accepted relative rate error")
	cmd.Flags().Float64("threshold", 0, "outlier threshold in physical units")
	cmd.Flags().Int("init-runs", 0, "repetitions of the init_multi scenario")
	cmd.Flags().Bool("dump-samples", false, "log every recorded sample at debug level")
	cmd.Flags().String("spi-device", "", "SPI device of the sensor")
	cmd.Flags().Int("interrupt-line", 0, "GPIO number of the data-ready line")
}

var RunCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "run the test suite",
	Long: `run executes the scenarios named on the command line, or the whole suite.
Settings are read from the configuration file and may be overridden by
IMUTEST_* environment variables and then by flags.
The command exits non-zero if any scenario fails.`,
	Example: `  imu_tester run --simulate
  imu_tester run dri_1khz fifo_8khz --quota 5000
  IMUTEST_LOG_LEVEL=debug imu_tester run --scenario-file lab.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load(cmd)
		if err != nil {
			return err
		}
		verdict, err := app.RunTester(cfg, args, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if verdict == rate.Fail {
			return ErrSuiteFailed
		}
		return nil
	},
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "list the scenarios of the configured suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load(cmd)
		if err != nil {
			return err
		}
		list, err := app.Scenarios(cfg, nil)
		if err != nil {
			return err
		}
		for _, sc := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-10s %5d Hz  quota %d\n",
				sc.Name, sc.Mode, sc.Config.GyroRate.Hz(), sc.Quota)
		}
		return nil
	},
}

var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "print results published by a tester",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load(cmd)
		if err != nil {
			return err
		}
		return app.RunConsole(cfg)
	},
}

var WebCmd = &cobra.Command{
	Use:   "web",
	Short: "serve published results over HTTP and websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load(cmd)
		if err != nil {
			return err
		}
		return app.RunWeb(cfg)
	},
}

// Load reads the configuration file named by --config and applies
// environment and flag overrides on top. A missing default file is not an
// error; the built-in defaults are used instead.
func Load(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for flag := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = v.BindPFlag(flag, f)
		} else {
			_ = v.BindEnv(flag)
		}
	}
	if f := cmd.Flags().Lookup("config"); f != nil {
		_ = v.BindPFlag("config", f)
	} else {
		_ = v.BindEnv("config")
	}

	path := v.GetString("config")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || path != config.DefaultPath {
			return nil, err
		}
		log.Debugf("no configuration at %s, using defaults", path)
		cfg = config.Default()
	}

	for flag, key := range flagKeys {
		if !v.IsSet(flag) {
			continue
		}
		if err := cfg.Override(key, v.GetString(flag)); err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
	}

	log.SetLevel(cfg.Level())
	config.Set(cfg)
	return cfg, nil
}

func getRootCmd() *cobra.Command {
	RunCmdFlags(RunCmd)
	RootCmd.AddCommand(RunCmd)

	RunCmdFlags(ListCmd)
	RootCmd.AddCommand(ListCmd)

	commonFlags(ConsoleCmd)
	RootCmd.AddCommand(ConsoleCmd)

	commonFlags(WebCmd)
	WebCmd.Flags().Int("port", 0, "HTTP port")
	RootCmd.AddCommand(WebCmd)

	return RootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
