package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the peripheral's configuration. Defaults come from struct
// tags; a YAML file overrides them field by field.
type Config struct {
	DeviceName string `yaml:"device_name" default:"SensorHub"`
	LogLevel   string `yaml:"log_level" default:"info"`

	// Provider selects the tracker data source: "synthetic" is the only
	// built-in; vendor SDKs plug in behind the same interface.
	Provider string `yaml:"provider" default:"synthetic"`

	Advertising AdvertisingConfig `yaml:"advertising"`
	Sequencer   SequencerConfig   `yaml:"sequencer"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Sensors     SensorsConfig     `yaml:"sensors"`
}

// AdvertisingConfig bounds the advertisement payload and retry policy.
type AdvertisingConfig struct {
	MaxServices int           `yaml:"max_services" default:"4"`
	MaxAttempts int           `yaml:"max_attempts" default:"5"`
	BaseDelay   time.Duration `yaml:"base_delay" default:"500ms"`
}

// SequencerConfig carries the settle delays around on-demand triggering.
// They are empirical and depend on the sensing hardware, hence
// configuration rather than constants.
type SequencerConfig struct {
	StartSettle  time.Duration `yaml:"start_settle" default:"2s"`
	ResumeSettle time.Duration `yaml:"resume_settle" default:"2s"`
}

// MeasurementConfig bounds an on-demand measurement window.
type MeasurementConfig struct {
	Window     time.Duration `yaml:"window" default:"30s"`
	Settling   time.Duration `yaml:"settling" default:"5s"`
	NotifyTick time.Duration `yaml:"notify_tick" default:"1s"`
}

// SensorsConfig enables individual sensors and sets the minimum
// inter-notification interval for the continuous ones.
type SensorsConfig struct {
	HeartRate     SensorConfig `yaml:"heart_rate"`
	Temperature   SensorConfig `yaml:"temperature"`
	Accelerometer SensorConfig `yaml:"accelerometer"`
	PPG           SensorConfig `yaml:"ppg"`
	SpO2          SensorConfig `yaml:"spo2"`
	ECG           SensorConfig `yaml:"ecg"`
}

// SensorConfig configures one sensor. Enabled uses a pointer so an absent
// YAML key means "enabled" rather than false.
type SensorConfig struct {
	Enabled        *bool         `yaml:"enabled"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
}

// IsEnabled treats an unset flag as enabled.
func (s SensorConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// IntervalOr returns the configured notify interval, or fallback when unset.
func (s SensorConfig) IntervalOr(fallback time.Duration) time.Duration {
	if s.NotifyInterval > 0 {
		return s.NotifyInterval
	}
	return fallback
}

// DefaultConfig returns the configuration with all struct-tag defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.Advertising.MaxAttempts < 1 {
		return fmt.Errorf("advertising.max_attempts must be at least 1")
	}
	if c.Measurement.Window <= 0 {
		return fmt.Errorf("measurement.window must be positive")
	}
	if c.Measurement.Settling >= c.Measurement.Window {
		return fmt.Errorf("measurement.settling must be shorter than the window")
	}
	return nil
}

// NewLogger creates a logger configured from the config's log level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
