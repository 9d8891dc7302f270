package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool records pause/resume fan-out.
type fakePool struct {
	pauses  int
	resumes int
}

func (p *fakePool) PauseContinuous()  { p.pauses++ }
func (p *fakePool) ResumeContinuous() { p.resumes++ }

// fakeMeasurement drives the Measurement side of the handshake manually.
type fakeMeasurement struct {
	begins     int
	resets     int
	beginErr   error
	onComplete func()
}

func (m *fakeMeasurement) Begin(onComplete func()) error {
	m.begins++
	if m.beginErr != nil {
		return m.beginErr
	}
	m.onComplete = onComplete
	return nil
}

func (m *fakeMeasurement) ResetWindow() { m.resets++ }

// complete simulates the measurement window ending.
func (m *fakeMeasurement) complete() {
	if m.onComplete != nil {
		m.onComplete()
	}
}

// timerQueue captures scheduled transitions for synchronous firing.
type timerQueue struct {
	delays []time.Duration
	fns    []func()
}

func (q *timerQueue) afterFunc(d time.Duration, f func()) *time.Timer {
	q.delays = append(q.delays, d)
	q.fns = append(q.fns, f)
	return time.NewTimer(time.Hour)
}

func (q *timerQueue) fire(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, q.fns)
	fn := q.fns[len(q.fns)-1]
	fn()
}

func newTestSequencer(opts Options) (*Sequencer, *fakePool, *timerQueue) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	pool := &fakePool{}
	q := New(pool, opts, logger)
	timers := &timerQueue{}
	q.afterFunc = timers.afterFunc
	return q, pool, timers
}

func TestSequencerFullHandshake(t *testing.T) {
	q, pool, timers := newTestSequencer(Options{
		StartSettle:  2 * time.Second,
		ResumeSettle: 3 * time.Second,
	})
	m := &fakeMeasurement{}

	// trigger: pause continuous sessions, then settle
	q.Trigger(m)
	assert.Equal(t, SettlingBeforeStart, q.State())
	assert.Equal(t, 1, pool.pauses)
	assert.Equal(t, 0, m.begins)
	require.Equal(t, []time.Duration{2 * time.Second}, timers.delays)

	// settle elapses: measurement begins
	timers.fire(t)
	assert.Equal(t, Measuring, q.State())
	assert.Equal(t, 1, m.begins)
	assert.Equal(t, 0, pool.resumes)

	// window completes: settle again before resume
	m.complete()
	assert.Equal(t, SettlingBeforeResume, q.State())
	assert.Equal(t, 0, pool.resumes)
	assert.Equal(t, 3*time.Second, timers.delays[len(timers.delays)-1])

	// resume settle elapses: continuous sessions come back
	timers.fire(t)
	assert.Equal(t, Idle, q.State())
	assert.Equal(t, 1, pool.resumes)
}

func TestSequencerMutualExclusion(t *testing.T) {
	t.Run("second trigger during settle does not stack", func(t *testing.T) {
		q, pool, _ := newTestSequencer(Options{})
		first := &fakeMeasurement{}
		second := &fakeMeasurement{}

		q.Trigger(first)
		q.Trigger(second)

		assert.Equal(t, SettlingBeforeStart, q.State())
		assert.Equal(t, 1, pool.pauses)
		assert.Equal(t, 0, second.begins)
		assert.Equal(t, 0, second.resets)
	})

	t.Run("trigger while measuring resets the countdown", func(t *testing.T) {
		q, _, timers := newTestSequencer(Options{})
		m := &fakeMeasurement{}

		q.Trigger(m)
		timers.fire(t)
		require.Equal(t, Measuring, q.State())

		q.Trigger(m)
		assert.Equal(t, 1, m.begins)
		assert.Equal(t, 1, m.resets)
		assert.Equal(t, Measuring, q.State())
	})

	t.Run("trigger from a different session while measuring also resets", func(t *testing.T) {
		q, _, timers := newTestSequencer(Options{})
		active := &fakeMeasurement{}
		other := &fakeMeasurement{}

		q.Trigger(active)
		timers.fire(t)

		q.Trigger(other)
		assert.Equal(t, 1, active.resets)
		assert.Equal(t, 0, other.begins)
	})
}

func TestSequencerBeginFailure(t *testing.T) {
	q, pool, timers := newTestSequencer(Options{})
	m := &fakeMeasurement{beginErr: errors.New("tracker busy")}

	q.Trigger(m)
	timers.fire(t)

	// failed start skips Measuring and schedules the resume settle
	assert.Equal(t, SettlingBeforeResume, q.State())
	timers.fire(t)
	assert.Equal(t, Idle, q.State())
	assert.Equal(t, 1, pool.resumes)
}

func TestSequencerStaleTimers(t *testing.T) {
	q, pool, timers := newTestSequencer(Options{})
	m := &fakeMeasurement{}

	q.Trigger(m)
	q.Reset()

	// the settle timer fires after Reset; it must not start a measurement
	timers.fire(t)
	assert.Equal(t, Idle, q.State())
	assert.Equal(t, 0, m.begins)
	assert.Equal(t, 0, pool.resumes)
}

func TestSequencerNewSequenceAfterIdle(t *testing.T) {
	q, pool, timers := newTestSequencer(Options{})
	m := &fakeMeasurement{}

	q.Trigger(m)
	timers.fire(t)
	m.complete()
	timers.fire(t)
	require.Equal(t, Idle, q.State())

	// a fresh trigger runs a full second handshake
	q.Trigger(m)
	timers.fire(t)
	assert.Equal(t, Measuring, q.State())
	assert.Equal(t, 2, pool.pauses)
	assert.Equal(t, 2, m.begins)
}
