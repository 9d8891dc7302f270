package sensor

import (
	"errors"
	"fmt"
)

// TrackerType identifies one physical sensing capability of the vendor
// tracking collaborator.
type TrackerType string

const (
	TrackerHeartRate       TrackerType = "heart_rate"
	TrackerSkinTemperature TrackerType = "skin_temperature"
	TrackerAccelerometer   TrackerType = "accelerometer"
	TrackerPPG             TrackerType = "ppg"
	TrackerSpO2            TrackerType = "spo2"
	TrackerECG             TrackerType = "ecg"
)

// ErrTrackerUnavailable is returned by a provider when the device does not
// support the requested tracker type. Callers treat it as a logged,
// non-fatal skip of that sensor's registration.
var ErrTrackerUnavailable = errors.New("tracker type unavailable")

// Channel is one raw value of a hardware sample. Available is false when
// the hardware marked the field unavailable; the codec maps such fields to
// documented sentinel values rather than silently coercing them to zero.
type Channel struct {
	Value     float64
	Available bool
}

// Ch is a shorthand constructor for an available channel.
func Ch(v float64) Channel {
	return Channel{Value: v, Available: true}
}

// Sample is one reading delivered by a tracker's data callback. Timestamp
// is the monotonic hardware timestamp in milliseconds; channel order and
// meaning are defined per tracker type (see the profile encoders).
type Sample struct {
	Timestamp int64
	Channels  []Channel
	Status    int16
	Sequence  int16
}

func (s Sample) String() string {
	return fmt.Sprintf("sample{ts=%d ch=%d status=%d}", s.Timestamp, len(s.Channels), s.Status)
}

// DataFunc receives samples on the tracker's callback goroutine. It must
// not block.
type DataFunc func(Sample)

// ErrorFunc receives per-tracker hardware errors.
type ErrorFunc func(error)

// Tracker is a handle on one hardware sensor stream, consumed from the
// vendor tracking collaborator. Flush discards any buffered samples so no
// late, stale callback fires after a listener change completes.
type Tracker interface {
	SetListener(onData DataFunc, onError ErrorFunc)
	UnsetListener()
	Flush()
}

// TrackerProvider is the vendor tracking collaborator boundary. The core
// never assumes a tracker type is available.
type TrackerProvider interface {
	SupportedTypes() []TrackerType
	CreateTracker(t TrackerType) (Tracker, error)
}

// Supports reports whether the provider lists the given type.
func Supports(p TrackerProvider, t TrackerType) bool {
	for _, st := range p.SupportedTypes() {
		if st == t {
			return true
		}
	}
	return false
}
