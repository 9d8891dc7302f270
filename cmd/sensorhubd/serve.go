package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openwearable/sensorhub/internal/gatt"
	"github.com/openwearable/sensorhub/internal/hub"
	"github.com/openwearable/sensorhub/internal/sensor"
	"github.com/openwearable/sensorhub/internal/transport/goble"
	"github.com/openwearable/sensorhub/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sensor peripheral",
	Long: `Start advertising and serve sensor data over GATT.

Continuous sensors begin streaming as soon as a central subscribes to their
data characteristics. On-demand sensors (SpO2, ECG) start measuring when a
central writes to their trigger characteristic; continuous streams are
paused for the duration of the measurement and resumed afterwards.

The daemon runs until interrupted.`,
	RunE: runServe,
}

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	transport, err := goble.New(logger)
	if err != nil {
		return fmt.Errorf("failed to open BLE transport: %w", err)
	}

	server := gatt.NewServer(transport, gatt.ServerOptions{
		Advertising: gatt.AdvertiserOptions{
			DeviceName:  cfg.DeviceName,
			MaxServices: cfg.Advertising.MaxServices,
			MaxAttempts: cfg.Advertising.MaxAttempts,
			BaseDelay:   cfg.Advertising.BaseDelay,
		},
	}, logger)

	coordinator := hub.New(server, provider, hubOptions(cfg), logger)
	coordinator.Start()

	color.Green("sensorhubd %s advertising as %q", formatVersion(version), cfg.DeviceName)
	color.White("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutting down")

	if err := coordinator.Close(); err != nil {
		logger.WithError(err).Warn("Shutdown reported errors")
	}
	color.Yellow("Stopped")
	return nil
}

// newProvider maps the configured provider name to a tracker source.
// Vendor SDK providers register here as build-tagged alternatives.
func newProvider(cfg *config.Config, logger *logrus.Logger) (sensor.TrackerProvider, error) {
	switch cfg.Provider {
	case "synthetic":
		return sensor.NewSyntheticProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: synthetic)", cfg.Provider)
	}
}

func hubOptions(cfg *config.Config) hub.Options {
	opts := hub.DefaultOptions()

	opts.HeartRate = cfg.Sensors.HeartRate.IsEnabled()
	opts.Temperature = cfg.Sensors.Temperature.IsEnabled()
	opts.Accelerometer = cfg.Sensors.Accelerometer.IsEnabled()
	opts.PPG = cfg.Sensors.PPG.IsEnabled()
	opts.SpO2 = cfg.Sensors.SpO2.IsEnabled()
	opts.ECG = cfg.Sensors.ECG.IsEnabled()

	opts.HeartRateInterval = cfg.Sensors.HeartRate.IntervalOr(opts.HeartRateInterval)
	opts.TemperatureInterval = cfg.Sensors.Temperature.IntervalOr(opts.TemperatureInterval)
	opts.AccelInterval = cfg.Sensors.Accelerometer.IntervalOr(opts.AccelInterval)
	opts.PPGInterval = cfg.Sensors.PPG.IntervalOr(opts.PPGInterval)

	opts.OnDemand = sensor.OnDemandOptions{
		Window:     cfg.Measurement.Window,
		Settling:   cfg.Measurement.Settling,
		NotifyTick: cfg.Measurement.NotifyTick,
	}
	opts.Sequencer.StartSettle = cfg.Sequencer.StartSettle
	opts.Sequencer.ResumeSettle = cfg.Sequencer.ResumeSettle

	return opts
}
