package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SyntheticProvider fabricates plausible sensor streams so the peripheral
// can run on hosts without the vendor tracking SDK. Every tracker type is
// supported; sample rates approximate the real hardware.
type SyntheticProvider struct {
	logger *logrus.Logger
}

// NewSyntheticProvider creates the provider.
func NewSyntheticProvider(logger *logrus.Logger) *SyntheticProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &SyntheticProvider{logger: logger}
}

// SupportedTypes implements TrackerProvider.
func (p *SyntheticProvider) SupportedTypes() []TrackerType {
	return []TrackerType{
		TrackerHeartRate, TrackerSkinTemperature, TrackerAccelerometer,
		TrackerPPG, TrackerSpO2, TrackerECG,
	}
}

// CreateTracker implements TrackerProvider.
func (p *SyntheticProvider) CreateTracker(t TrackerType) (Tracker, error) {
	interval, gen := syntheticSource(t)
	if gen == nil {
		return nil, ErrTrackerUnavailable
	}
	return &syntheticTracker{
		kind:     t,
		interval: interval,
		generate: gen,
		logger:   p.logger,
	}, nil
}

// syntheticSource returns the native sampling interval and waveform
// generator for a tracker type.
func syntheticSource(t TrackerType) (time.Duration, func(elapsed time.Duration, seq int16) Sample) {
	switch t {
	case TrackerHeartRate:
		return time.Second, func(e time.Duration, _ int16) Sample {
			bpm := 70 + 8*math.Sin(e.Seconds()/30) + rand.Float64()*3
			return Sample{Timestamp: nowMillis(), Channels: []Channel{Ch(bpm)}, Status: HeartRateStatusSuccess}
		}
	case TrackerSkinTemperature:
		return 5 * time.Second, func(e time.Duration, _ int16) Sample {
			object := 33.5 + 0.4*math.Sin(e.Seconds()/120)
			ambient := 24.0 + rand.Float64()*0.5
			return Sample{Timestamp: nowMillis(), Channels: []Channel{Ch(object), Ch(ambient)}, Status: TemperatureStatusOK}
		}
	case TrackerAccelerometer:
		return 100 * time.Millisecond, func(e time.Duration, _ int16) Sample {
			s := e.Seconds()
			return Sample{Timestamp: nowMillis(), Channels: []Channel{
				Ch(800 * math.Sin(s)), Ch(800 * math.Cos(s)), Ch(4096 + 50*rand.Float64()),
			}}
		}
	case TrackerPPG:
		return 100 * time.Millisecond, func(e time.Duration, _ int16) Sample {
			pulse := math.Sin(2 * math.Pi * 1.2 * e.Seconds())
			return Sample{Timestamp: nowMillis(), Channels: []Channel{
				Ch(200000 + 12000*pulse), Ch(150000 + 8000*pulse), Ch(100000 + 5000*pulse),
			}, Status: PPGStatusNormal}
		}
	case TrackerSpO2:
		return time.Second, func(e time.Duration, _ int16) Sample {
			status := SpO2StatusCalculating
			value := 0.0
			if e >= 10*time.Second {
				status = SpO2StatusComplete
				value = 96 + rand.Float64()*2
			}
			return Sample{Timestamp: nowMillis(), Channels: []Channel{Ch(value)}, Status: status}
		}
	case TrackerECG:
		return 10 * time.Millisecond, func(e time.Duration, seq int16) Sample {
			// Crude PQRST-ish shape: a narrow spike on a slow baseline.
			phase := math.Mod(e.Seconds()*1.2, 1.0)
			mv := 0.1 * math.Sin(2*math.Pi*phase)
			if phase > 0.48 && phase < 0.52 {
				mv = 1.1
			}
			return Sample{Timestamp: nowMillis(), Channels: []Channel{Ch(mv)}, Status: ECGLeadStatusNormal, Sequence: seq}
		}
	default:
		return 0, nil
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// syntheticTracker emits generated samples on its own goroutine at the
// sensor's native rate.
type syntheticTracker struct {
	kind     TrackerType
	interval time.Duration
	generate func(elapsed time.Duration, seq int16) Sample
	logger   *logrus.Logger

	mu   sync.Mutex
	stop chan struct{}
}

// SetListener implements Tracker. Replacing an existing listener detaches
// the previous one first.
func (t *syntheticTracker) SetListener(onData DataFunc, _ ErrorFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop

	go func() {
		start := time.Now()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		var seq int16
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onData(t.generate(time.Since(start), seq))
				seq++
			}
		}
	}()
}

// UnsetListener implements Tracker.
func (t *syntheticTracker) UnsetListener() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Flush implements Tracker. The synthetic stream buffers nothing.
func (t *syntheticTracker) Flush() {}
