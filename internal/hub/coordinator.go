// Package hub owns the top level of the peripheral: it constructs every
// sensor session the hardware supports, wires them to the GATT multiplexer,
// and exposes pause-all/resume-all to the trigger sequencer.
package hub

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/gatt"
	"github.com/openwearable/sensorhub/internal/sensor"
	"github.com/openwearable/sensorhub/internal/sequencer"
)

// Options selects which sensors to expose and their timing parameters.
type Options struct {
	HeartRate     bool
	Temperature   bool
	Accelerometer bool
	PPG           bool
	SpO2          bool
	ECG           bool

	HeartRateInterval   time.Duration
	TemperatureInterval time.Duration
	AccelInterval       time.Duration
	PPGInterval         time.Duration

	OnDemand  sensor.OnDemandOptions
	Sequencer sequencer.Options
}

// DefaultOptions enables every sensor with rate limits derived from the
// native sampling rates.
func DefaultOptions() Options {
	return Options{
		HeartRate:     true,
		Temperature:   true,
		Accelerometer: true,
		PPG:           true,
		SpO2:          true,
		ECG:           true,

		HeartRateInterval:   time.Second,
		TemperatureInterval: 5 * time.Second,
		AccelInterval:       100 * time.Millisecond,
		PPGInterval:         100 * time.Millisecond,

		OnDemand: sensor.OnDemandOptions{
			Window:     30 * time.Second,
			Settling:   5 * time.Second,
			NotifyTick: time.Second,
		},
		Sequencer: sequencer.Options{
			StartSettle:  2 * time.Second,
			ResumeSettle: 2 * time.Second,
		},
	}
}

// Coordinator builds and owns all sensor sessions over one multiplexer.
// A session whose tracker type the provider does not support is skipped
// with a log line; no failure in one session blocks another.
type Coordinator struct {
	server     *gatt.Server
	provider   sensor.TrackerProvider
	sequencer  *sequencer.Sequencer
	continuous []*sensor.ContinuousSession
	onDemand   []*sensor.OnDemandSession
	logger     *logrus.Logger
}

// New constructs all supported sessions and registers them with the server.
func New(server *gatt.Server, provider sensor.TrackerProvider, opts Options, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Coordinator{
		server:   server,
		provider: provider,
		logger:   logger,
	}
	c.sequencer = sequencer.New(c, opts.Sequencer, logger)

	if opts.HeartRate {
		c.addContinuous(sensor.HeartRateProfile(opts.HeartRateInterval))
	}
	if opts.Temperature {
		c.addContinuous(sensor.TemperatureProfile(opts.TemperatureInterval))
	}
	if opts.Accelerometer {
		c.addContinuous(sensor.AccelerometerProfile(opts.AccelInterval))
	}
	if opts.PPG {
		c.addContinuous(sensor.PPGProfile(opts.PPGInterval))
	}
	if opts.SpO2 {
		c.addOnDemand(sensor.SpO2Profile(), opts.OnDemand)
	}
	if opts.ECG {
		c.addOnDemand(sensor.ECGProfile(), opts.OnDemand)
	}
	return c
}

func (c *Coordinator) addContinuous(profile sensor.Profile) {
	if !sensor.Supports(c.provider, profile.Tracker) {
		c.logger.WithField("sensor", profile.Name).Info("Tracker type unsupported on this device, skipping")
		return
	}
	s := sensor.NewContinuousSession(profile, c.provider, c.server, c.logger)
	if !c.register(profile.Name, s, s.Init) {
		return
	}
	c.continuous = append(c.continuous, s)
}

func (c *Coordinator) addOnDemand(profile sensor.Profile, opts sensor.OnDemandOptions) {
	if !sensor.Supports(c.provider, profile.Tracker) {
		c.logger.WithField("sensor", profile.Name).Info("Tracker type unsupported on this device, skipping")
		return
	}
	s := sensor.NewOnDemandSession(profile, c.provider, c.server, c.sequencer, opts, c.logger)
	if !c.register(profile.Name, s, s.Init) {
		return
	}
	c.onDemand = append(c.onDemand, s)
}

// register initializes a session and adds its service; failures are
// contained so other sessions keep working.
func (c *Coordinator) register(name string, session gatt.Session, init func() error) bool {
	if err := init(); err != nil {
		c.logger.WithError(err).WithField("sensor", name).Warn("Session initialization failed, skipping")
		return false
	}
	if err := c.server.AddService(session); err != nil {
		c.logger.WithError(err).WithField("sensor", name).Warn("Service registration failed, skipping")
		return false
	}
	return true
}

// Start begins all continuous sessions and advertising.
func (c *Coordinator) Start() {
	for _, s := range c.continuous {
		s.Start()
	}
	c.server.Advertiser().Start()
	c.logger.WithFields(logrus.Fields{
		"continuous": len(c.continuous),
		"on_demand":  len(c.onDemand),
	}).Info("Session coordinator started")
}

// PauseContinuous implements sequencer.SessionPool.
func (c *Coordinator) PauseContinuous() {
	for _, s := range c.continuous {
		s.Pause()
	}
}

// ResumeContinuous implements sequencer.SessionPool.
func (c *Coordinator) ResumeContinuous() {
	for _, s := range c.continuous {
		s.Resume()
	}
}

// Sequencer exposes the trigger sequencer for inspection.
func (c *Coordinator) Sequencer() *sequencer.Sequencer {
	return c.sequencer
}

// SessionStatus is one session's entry in a Status snapshot.
type SessionStatus struct {
	Sensor string `json:"sensor"`
	Mode   string `json:"mode"`
	State  string `json:"state"`
}

// Status is a point-in-time snapshot of the peripheral, suitable for
// structured logging and diagnostics.
type Status struct {
	Advertising      string          `json:"advertising"`
	Sequencer        string          `json:"sequencer"`
	ConnectedDevices []string        `json:"connected_devices"`
	Sessions         []SessionStatus `json:"sessions"`
}

// Status reports the current state of every session, the sequencer and
// advertising.
func (c *Coordinator) Status() Status {
	st := Status{
		Advertising:      c.server.Advertiser().State().String(),
		Sequencer:        c.sequencer.State().String(),
		ConnectedDevices: c.server.ConnectedDevices(),
	}
	for _, s := range c.continuous {
		st.Sessions = append(st.Sessions, SessionStatus{Sensor: s.Name(), Mode: "continuous", State: s.State().String()})
	}
	for _, s := range c.onDemand {
		st.Sessions = append(st.Sessions, SessionStatus{Sensor: s.Name(), Mode: "on_demand", State: s.State().String()})
	}
	return st
}

// Close tears down every session and the multiplexer.
func (c *Coordinator) Close() error {
	for _, s := range c.onDemand {
		s.Close()
	}
	for _, s := range c.continuous {
		s.Close()
	}
	c.sequencer.Reset()
	return c.server.Close()
}
