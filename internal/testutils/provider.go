package testutils

import (
	"sync"

	"github.com/openwearable/sensorhub/internal/sensor"
)

// FakeTracker implements sensor.Tracker with manual sample injection.
type FakeTracker struct {
	mu      sync.Mutex
	onData  sensor.DataFunc
	onError sensor.ErrorFunc

	SetCalls   int
	UnsetCalls int
	FlushCalls int
}

func (t *FakeTracker) SetListener(onData sensor.DataFunc, onError sensor.ErrorFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = onData
	t.onError = onError
	t.SetCalls++
}

func (t *FakeTracker) UnsetListener() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = nil
	t.onError = nil
	t.UnsetCalls++
}

func (t *FakeTracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.FlushCalls++
}

// Emit delivers a sample to the current listener, if any. Returns whether
// a listener consumed it.
func (t *FakeTracker) Emit(s sensor.Sample) bool {
	t.mu.Lock()
	onData := t.onData
	t.mu.Unlock()
	if onData == nil {
		return false
	}
	onData(s)
	return true
}

// EmitError delivers a hardware error to the current listener, if any.
func (t *FakeTracker) EmitError(err error) bool {
	t.mu.Lock()
	onError := t.onError
	t.mu.Unlock()
	if onError == nil {
		return false
	}
	onError(err)
	return true
}

// Listening reports whether a data listener is installed.
func (t *FakeTracker) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onData != nil
}

// FakeProvider implements sensor.TrackerProvider over a fixed set of fake
// trackers.
type FakeProvider struct {
	Trackers map[sensor.TrackerType]*FakeTracker
}

// NewFakeProvider creates a provider supporting exactly the given types.
func NewFakeProvider(types ...sensor.TrackerType) *FakeProvider {
	p := &FakeProvider{Trackers: make(map[sensor.TrackerType]*FakeTracker)}
	for _, t := range types {
		p.Trackers[t] = &FakeTracker{}
	}
	return p
}

func (p *FakeProvider) SupportedTypes() []sensor.TrackerType {
	types := make([]sensor.TrackerType, 0, len(p.Trackers))
	for t := range p.Trackers {
		types = append(types, t)
	}
	return types
}

func (p *FakeProvider) CreateTracker(t sensor.TrackerType) (sensor.Tracker, error) {
	tracker, ok := p.Trackers[t]
	if !ok {
		return nil, sensor.ErrTrackerUnavailable
	}
	return tracker, nil
}

// Tracker returns the fake tracker for a type, or nil if unsupported.
func (p *FakeProvider) Tracker(t sensor.TrackerType) *FakeTracker {
	return p.Trackers[t]
}
