package sensor

import (
	"fmt"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// SessionState is the lifecycle position of a sensor session.
type SessionState int32

const (
	Uninitialized SessionState = iota
	Initialized
	Tracking
	Paused
	Measuring
	ShuttingDown
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	case Measuring:
		return "measuring"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// Measurement is the surface the trigger sequencer drives on an on-demand
// session: start the bounded measurement window (onComplete fires exactly
// once when the window ends) or reset the running countdown.
type Measurement interface {
	Begin(onComplete func()) error
	ResetWindow()
}

// TriggerCoordinator is the exclusive-access arbiter an on-demand session
// reports trigger writes to. Implemented by the sequencer package.
type TriggerCoordinator interface {
	Trigger(m Measurement)
}

// session carries the state shared by both variants: the profile, the
// hardware tracker handle, the latest-value cache, and the best-effort view
// of reachable peers used for notify-skip.
type session struct {
	profile  Profile
	provider TrackerProvider
	tracker  Tracker
	notifier gatt.Notifier
	logger   *logrus.Logger

	state  atomic.Int32
	latest *latestStore
	peers  *hashmap.Map[string, struct{}]
}

func newSession(profile Profile, provider TrackerProvider, notifier gatt.Notifier, logger *logrus.Logger) session {
	if logger == nil {
		logger = logrus.New()
	}
	latest := newLatestStore(profile.DataCharUUIDs())
	latest.Reset(profile.Neutral())
	return session{
		profile:  profile,
		provider: provider,
		notifier: notifier,
		logger:   logger,
		latest:   latest,
		peers:    hashmap.New[string, struct{}](),
	}
}

// Init acquires the hardware tracker. ErrTrackerUnavailable means the
// device lacks this sensor; the caller skips registration and moves on.
func (s *session) Init() error {
	if s.State() != Uninitialized {
		return fmt.Errorf("session %s: already initialized", s.profile.Name)
	}
	tracker, err := s.provider.CreateTracker(s.profile.Tracker)
	if err != nil {
		return fmt.Errorf("session %s: %w", s.profile.Name, err)
	}
	s.tracker = tracker
	s.setState(Initialized)
	s.logger.WithField("sensor", s.profile.Name).Debug("Session initialized")
	return nil
}

func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

// Name returns the human-readable sensor name.
func (s *session) Name() string {
	return s.profile.Name
}

func (s *session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// Descriptor implements gatt.Session.
func (s *session) Descriptor() gatt.ServiceDescriptor {
	return s.profile.Service
}

// HandleRead serves the newest frame for readable characteristics. Trigger
// characteristics are not readable.
func (s *session) HandleRead(_, charUUID string) ([]byte, bool) {
	id := gatt.NormalizeUUID(charUUID)
	desc, ok := s.profile.Service.Characteristic(id)
	if !ok || desc.Mode != gatt.AccessReadNotify {
		return nil, false
	}
	frame := s.latest.Get(id)
	if frame == nil {
		return nil, false
	}
	return frame.Payload, true
}

// HandleWrite is a no-op for continuous sessions; the on-demand variant
// overrides it to handle trigger characteristics.
func (s *session) HandleWrite(deviceAddr, charUUID string, _ []byte) {
	s.logger.WithFields(logrus.Fields{
		"sensor":         s.profile.Name,
		"device":         deviceAddr,
		"characteristic": gatt.ShortenUUID(charUUID),
	}).Debug("Ignoring write to non-trigger characteristic")
}

// PushCurrent notifies the newest frame for one characteristic so a freshly
// subscribed central is synchronized immediately.
func (s *session) PushCurrent(charUUID string) {
	id := gatt.NormalizeUUID(charUUID)
	if frame := s.latest.Get(id); frame != nil {
		s.notifier.Notify(id, frame.Payload, false)
	}
}

// OnDeviceConnected implements gatt.Session.
func (s *session) OnDeviceConnected(deviceAddr string) {
	s.peers.Set(deviceAddr, struct{}{})
}

// OnDeviceDisconnected implements gatt.Session.
func (s *session) OnDeviceDisconnected(deviceAddr string) {
	s.peers.Del(deviceAddr)
}

// hasPeers reports whether any central is reachable; used to skip notify
// work entirely when nobody is connected.
func (s *session) hasPeers() bool {
	return s.peers.Len() > 0
}

// detach removes the listener and flushes so no late, stale callback fires
// after the call completes.
func (s *session) detach() {
	if s.tracker != nil {
		s.tracker.UnsetListener()
		s.tracker.Flush()
	}
}
