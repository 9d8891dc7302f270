package sensor

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// notifyGate enforces a minimum inter-notification interval per
// characteristic without blocking or locking: callers race on a CAS of the
// last-allowed timestamp, and losers simply skip the notify. The
// latest-value cache is always updated first, so the next allowed notify
// carries the newest sample, not a stale one.
type notifyGate struct {
	min  int64 // nanoseconds; 0 disables the gate
	last atomic.Int64
}

func (g *notifyGate) allow(now int64) bool {
	if g.min == 0 {
		return true
	}
	for {
		last := g.last.Load()
		if last != 0 && now-last < g.min {
			return false
		}
		if g.last.CompareAndSwap(last, now) {
			return true
		}
	}
}

// ContinuousSession streams an always-on sensor. It attaches a data
// callback to the hardware tracker on Start and relays every sample to the
// multiplexer, subject to the profile's rate limit. Pause and Resume are
// driven externally by the trigger sequencer while an on-demand measurement
// owns the shared sensing hardware.
type ContinuousSession struct {
	session
	gates map[string]*notifyGate
}

// NewContinuousSession builds the session; call Init before Start.
func NewContinuousSession(profile Profile, provider TrackerProvider, notifier gatt.Notifier, logger *logrus.Logger) *ContinuousSession {
	gates := make(map[string]*notifyGate)
	for _, id := range profile.DataCharUUIDs() {
		gates[id] = &notifyGate{min: profile.MinNotifyInterval.Nanoseconds()}
	}
	return &ContinuousSession{
		session: newSession(profile, provider, notifier, logger),
		gates:   gates,
	}
}

// Start begins delivery from the hardware data source.
func (s *ContinuousSession) Start() {
	if st := s.State(); st != Initialized && st != Paused {
		s.logger.WithFields(logrus.Fields{"sensor": s.profile.Name, "state": st.String()}).
			Warn("Start ignored in current state")
		return
	}
	s.tracker.SetListener(s.onData, s.onError)
	s.setState(Tracking)
	s.logger.WithField("sensor", s.profile.Name).Info("Continuous tracking started")
}

// Pause detaches the data callback and flushes buffered samples. No queuing
// is attempted; the flush only guarantees no stale callback fires after
// Pause returns.
func (s *ContinuousSession) Pause() {
	if s.State() != Tracking {
		return
	}
	s.detach()
	s.setState(Paused)
	s.logger.WithField("sensor", s.profile.Name).Debug("Continuous tracking paused")
}

// Resume re-flushes then re-attaches the data callback.
func (s *ContinuousSession) Resume() {
	if s.State() != Paused {
		return
	}
	s.tracker.Flush()
	s.tracker.SetListener(s.onData, s.onError)
	s.setState(Tracking)
	s.logger.WithField("sensor", s.profile.Name).Debug("Continuous tracking resumed")
}

// Stop is Pause with no intent to resume; used only at full teardown.
func (s *ContinuousSession) Stop() {
	if st := s.State(); st != Tracking && st != Paused {
		return
	}
	s.setState(ShuttingDown)
	s.detach()
	s.setState(Initialized)
}

// Close tears the session down.
func (s *ContinuousSession) Close() {
	s.Stop()
	s.setState(Terminated)
}

// onData runs on the tracker callback goroutine: update the latest-value
// cache, then notify unless the rate gate or the empty-peer view says skip.
// A panic from a bad sample is contained here; the sample is dropped and
// subsequent samples keep flowing.
func (s *ContinuousSession) onData(sample Sample) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{"sensor": s.profile.Name, "panic": r}).
				Error("Dropping sample after handler panic")
		}
	}()
	now := time.Now().UnixNano()
	for _, frame := range s.profile.Encode(sample) {
		s.latest.Update(frame)
		if !s.hasPeers() {
			continue
		}
		if gate := s.gates[frame.CharUUID]; gate != nil && !gate.allow(now) {
			continue
		}
		s.notifier.Notify(frame.CharUUID, frame.Payload, false)
	}
}

func (s *ContinuousSession) onError(err error) {
	s.logger.WithError(err).WithField("sensor", s.profile.Name).Warn("Tracker reported error")
}
