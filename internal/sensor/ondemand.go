package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// OnDemandOptions bounds one exclusive measurement.
type OnDemandOptions struct {
	// Window is the total measurement duration; the countdown restarts on
	// re-trigger.
	Window time.Duration

	// Settling suppresses notifications at the start of the window while
	// the hardware stabilizes. Samples still update the latest-value cache.
	Settling time.Duration

	// NotifyTick is the periodic notification interval after settling.
	NotifyTick time.Duration
}

// OnDemandSession is an exclusive, time-boxed sensor. It never self-starts:
// a write to its trigger characteristic is reported to the trigger
// coordinator, which pauses all continuous sessions before calling Begin.
// On window completion the session stops its hardware source, resets the
// latest-value cache to the profile's neutral state, and signals the
// coordinator so continuous sessions resume.
type OnDemandSession struct {
	session
	coordinator TriggerCoordinator
	opts        OnDemandOptions

	mu          sync.Mutex
	windowTimer *time.Timer
	tickStop    chan struct{}
	started     time.Time
	onComplete  func()
}

// NewOnDemandSession builds the session; call Init before registering it.
func NewOnDemandSession(profile Profile, provider TrackerProvider, notifier gatt.Notifier, coordinator TriggerCoordinator, opts OnDemandOptions, logger *logrus.Logger) *OnDemandSession {
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}
	if opts.NotifyTick <= 0 {
		opts.NotifyTick = time.Second
	}
	return &OnDemandSession{
		session:     newSession(profile, provider, notifier, logger),
		coordinator: coordinator,
		opts:        opts,
	}
}

// HandleWrite treats any payload written to the trigger characteristic as
// an edge signal; content is ignored. Other writes are logged and dropped.
func (s *OnDemandSession) HandleWrite(deviceAddr, charUUID string, value []byte) {
	if gatt.NormalizeUUID(charUUID) != s.profile.TriggerUUID {
		s.session.HandleWrite(deviceAddr, charUUID, value)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"sensor": s.profile.Name,
		"device": deviceAddr,
	}).Info("Measurement triggered")
	s.coordinator.Trigger(s)
}

// Begin starts the hardware tracker and the measurement window. Called by
// the trigger coordinator once all continuous sessions are paused and the
// settle delay has elapsed. Implements Measurement.
func (s *OnDemandSession) Begin(onComplete func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == Measuring {
		// Already measuring: treat as a re-trigger.
		s.resetWindowLocked()
		return nil
	}
	if s.State() != Initialized {
		return fmt.Errorf("session %s: cannot measure in state %s", s.profile.Name, s.State())
	}

	s.tracker.Flush()
	s.tracker.SetListener(s.onData, s.onError)
	s.setState(Measuring)
	s.started = time.Now()
	s.onComplete = onComplete
	s.tickStop = make(chan struct{})
	s.windowTimer = time.AfterFunc(s.opts.Window, s.finish)
	go s.notifyLoop(s.tickStop)
	s.logger.WithFields(logrus.Fields{
		"sensor": s.profile.Name,
		"window": s.opts.Window,
	}).Info("Measurement window opened")
	return nil
}

// ResetWindow restarts the countdown of an active measurement; triggers
// received while already measuring reset rather than stack. Implements
// Measurement.
func (s *OnDemandSession) ResetWindow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetWindowLocked()
}

func (s *OnDemandSession) resetWindowLocked() {
	if s.State() != Measuring || s.windowTimer == nil {
		return
	}
	s.windowTimer.Reset(s.opts.Window)
	s.logger.WithField("sensor", s.profile.Name).Debug("Measurement countdown reset")
}

// notifyLoop emits one notification per tick after the settling interval,
// until the window ends. Notifications carry the newest cached frame.
func (s *OnDemandSession) notifyLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.opts.NotifyTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			settled := time.Since(s.started) >= s.opts.Settling
			s.mu.Unlock()
			if !settled {
				continue
			}
			for _, id := range s.profile.DataCharUUIDs() {
				if frame := s.latest.Get(id); frame != nil {
					s.notifier.Notify(id, frame.Payload, false)
				}
			}
		}
	}
}

// finish closes the measurement window: stop the hardware source, restore
// the neutral latest value, and signal completion to the coordinator.
func (s *OnDemandSession) finish() {
	s.mu.Lock()
	if s.State() != Measuring {
		s.mu.Unlock()
		return
	}
	close(s.tickStop)
	s.tickStop = nil
	s.windowTimer = nil
	s.detach()
	s.latest.Reset(s.profile.Neutral())
	s.setState(Initialized)
	done := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	s.logger.WithField("sensor", s.profile.Name).Info("Measurement window closed")
	if done != nil {
		done()
	}
}

// onData runs on the tracker callback goroutine during the measurement
// window: it only refreshes the latest-value cache; delivery is tick-driven.
func (s *OnDemandSession) onData(sample Sample) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"sensor": s.profile.Name, "panic": r}).
				Error("Dropping sample after handler panic")
		}
	}()
	for _, frame := range s.profile.Encode(sample) {
		s.latest.Update(frame)
	}
}

func (s *OnDemandSession) onError(err error) {
	s.logger.WithError(err).WithField("sensor", s.profile.Name).Warn("Tracker reported error")
}

// Close tears the session down, completing any in-flight window first so
// shared hardware state is restored deterministically.
func (s *OnDemandSession) Close() {
	s.finish()
	s.setState(Terminated)
}
