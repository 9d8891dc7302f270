package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "SensorHub", cfg.DeviceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "synthetic", cfg.Provider)
	assert.Equal(t, 4, cfg.Advertising.MaxServices)
	assert.Equal(t, 5, cfg.Advertising.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Advertising.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Sequencer.StartSettle)
	assert.Equal(t, 30*time.Second, cfg.Measurement.Window)
	assert.Equal(t, 5*time.Second, cfg.Measurement.Settling)
	assert.NoError(t, cfg.Validate())
}

func TestSensorConfig(t *testing.T) {
	t.Run("enabled by default", func(t *testing.T) {
		var s SensorConfig
		assert.True(t, s.IsEnabled())
	})

	t.Run("explicit disable", func(t *testing.T) {
		off := false
		s := SensorConfig{Enabled: &off}
		assert.False(t, s.IsEnabled())
	})

	t.Run("interval fallback", func(t *testing.T) {
		var s SensorConfig
		assert.Equal(t, time.Second, s.IntervalOr(time.Second))
		s.NotifyInterval = 250 * time.Millisecond
		assert.Equal(t, 250*time.Millisecond, s.IntervalOr(time.Second))
	})
}

func TestLoad(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("partial override keeps defaults", func(t *testing.T) {
		path := writeFile(t, `
device_name: WristUnit
sensors:
  ecg:
    enabled: false
  accelerometer:
    notify_interval: 50ms
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "WristUnit", cfg.DeviceName)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.False(t, cfg.Sensors.ECG.IsEnabled())
		assert.True(t, cfg.Sensors.HeartRate.IsEnabled())
		assert.Equal(t, 50*time.Millisecond, cfg.Sensors.Accelerometer.IntervalOr(time.Second))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "device_name: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := map[string]string{
			"bad log level":      "log_level: shouty",
			"empty device name":  `device_name: ""`,
			"zero attempts":      "advertising:\n  max_attempts: 0",
			"settling >= window": "measurement:\n  window: 5s\n  settling: 5s",
		}
		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := Load(writeFile(t, content))
				assert.Error(t, err)
			})
		}
	})
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}
