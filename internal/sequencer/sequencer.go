// Package sequencer serializes access to the shared sensing hardware: it
// orchestrates the pause → settle → measure → settle → resume handshake
// between continuous sensor sessions and an exclusive on-demand
// measurement. Only one measurement may be active system-wide; continuous
// sessions never run concurrently with it.
package sequencer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/sensor"
)

// State is the sequencer's position in the exclusive-access handshake.
type State int32

const (
	Idle State = iota
	Pausing
	SettlingBeforeStart
	Measuring
	SettlingBeforeResume
)

func (s State) String() string {
	switch s {
	case Pausing:
		return "pausing"
	case SettlingBeforeStart:
		return "settling_before_start"
	case Measuring:
		return "measuring"
	case SettlingBeforeResume:
		return "settling_before_resume"
	default:
		return "idle"
	}
}

// SessionPool is the slice of the coordinator the sequencer drives: pause
// and resume every continuous session.
type SessionPool interface {
	PauseContinuous()
	ResumeContinuous()
}

// Options carries the settle delays. They are empirical and
// hardware-specific, so they are configuration rather than constants.
type Options struct {
	// StartSettle is the wait after pausing continuous sessions before the
	// on-demand tracker starts (hardware needs time to release the shared
	// sensor bus).
	StartSettle time.Duration

	// ResumeSettle is the wait after the measurement stops before
	// continuous sessions resume.
	ResumeSettle time.Duration
}

// Sequencer implements sensor.TriggerCoordinator. All transitions are
// timer-driven: the sequencer is re-entered on timer fire, never by
// sleeping a goroutine.
type Sequencer struct {
	pool   SessionPool
	opts   Options
	logger *logrus.Logger

	mu         sync.Mutex
	state      State
	active     sensor.Measurement
	generation uint64

	// afterFunc is swappable so tests can drive transitions synchronously.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// New creates an idle sequencer.
func New(pool SessionPool, opts Options, logger *logrus.Logger) *Sequencer {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.StartSettle <= 0 {
		opts.StartSettle = 2 * time.Second
	}
	if opts.ResumeSettle <= 0 {
		opts.ResumeSettle = 2 * time.Second
	}
	return &Sequencer{
		pool:      pool,
		opts:      opts,
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

// State returns the current handshake position.
func (q *Sequencer) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Trigger starts the exclusive-access handshake for a measurement. A
// trigger received while the sequencer is not idle resets the current
// countdown rather than starting a second overlapping sequence, which
// guarantees the shared hardware is never addressed by two sessions at
// once.
func (q *Sequencer) Trigger(m sensor.Measurement) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != Idle {
		// Re-trigger resets the running countdown instead of stacking a
		// second sequence; earlier phases have no countdown yet.
		if q.state == Measuring && q.active != nil {
			q.active.ResetWindow()
		} else {
			q.logger.WithField("state", q.state.String()).
				Debug("Trigger while handshake in progress; sequence continues")
		}
		return
	}

	q.active = m
	q.transitionLocked(Pausing)
	q.pool.PauseContinuous()
	q.transitionLocked(SettlingBeforeStart)

	gen := q.generation
	q.afterFunc(q.opts.StartSettle, func() {
		q.startMeasurement(gen)
	})
}

func (q *Sequencer) startMeasurement(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.generation != gen || q.state != SettlingBeforeStart {
		return
	}

	if err := q.active.Begin(func() { q.measurementDone(gen) }); err != nil {
		q.logger.WithError(err).Error("Measurement failed to start; resuming continuous sessions")
		q.scheduleResumeLocked(gen)
		return
	}
	q.transitionLocked(Measuring)
}

// measurementDone fires exactly once from the session when its countdown
// completes.
func (q *Sequencer) measurementDone(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.generation != gen || q.state != Measuring {
		return
	}
	q.scheduleResumeLocked(gen)
}

func (q *Sequencer) scheduleResumeLocked(gen uint64) {
	q.transitionLocked(SettlingBeforeResume)
	q.afterFunc(q.opts.ResumeSettle, func() {
		q.resume(gen)
	})
}

func (q *Sequencer) resume(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.generation != gen || q.state != SettlingBeforeResume {
		return
	}
	q.pool.ResumeContinuous()
	q.active = nil
	q.transitionLocked(Idle)
}

func (q *Sequencer) transitionLocked(next State) {
	q.logger.WithFields(logrus.Fields{
		"from": q.state.String(),
		"to":   next.String(),
	}).Debug("Sequencer transition")
	q.state = next
}

// Reset aborts any in-flight handshake bookkeeping at shutdown. It does not
// touch sessions; the coordinator closes those itself.
func (q *Sequencer) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.generation++
	q.active = nil
	q.state = Idle
}
