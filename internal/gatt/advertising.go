package gatt

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AdvertisingTransport is the slice of Transport the advertiser needs.
type AdvertisingTransport interface {
	StartAdvertising(name string, serviceUUIDs []string) error
	StopAdvertising() error
}

// AdvertisingState reflects the advertiser's externally visible condition.
type AdvertisingState int32

const (
	AdvStopped AdvertisingState = iota
	AdvActive
	AdvRetrying
	AdvFailed // retry cap exceeded; stays off until the next Restart
)

func (s AdvertisingState) String() string {
	switch s {
	case AdvActive:
		return "active"
	case AdvRetrying:
		return "retrying"
	case AdvFailed:
		return "failed"
	default:
		return "stopped"
	}
}

// AdvertiserOptions configures retry and payload bounds.
type AdvertiserOptions struct {
	DeviceName  string
	MaxServices int           // advertisement payload bound
	MaxAttempts int           // total start attempts before giving up
	BaseDelay   time.Duration // first retry delay; doubles per attempt
}

// Advertiser announces the aggregate registered service set so a central can
// discover and connect. Start failures are retried with exponential backoff
// up to MaxAttempts; exceeding the cap is reported, not fatal, and
// advertising stays off until the next explicit Restart (typically driven by
// a new service registration).
type Advertiser struct {
	transport AdvertisingTransport
	services  func() []string // deterministic priority order
	opts      AdvertiserOptions
	logger    *logrus.Logger

	mu         sync.Mutex
	state      AdvertisingState
	attempt    int
	generation uint64 // invalidates timers scheduled before a Stop/Restart
	timer      *time.Timer

	// afterFunc is swappable so tests can capture scheduled delays.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewAdvertiser creates an advertiser over the given transport. The services
// callback supplies the current registered service UUIDs in priority order.
func NewAdvertiser(transport AdvertisingTransport, services func() []string, opts AdvertiserOptions, logger *logrus.Logger) *Advertiser {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.MaxServices <= 0 {
		opts.MaxServices = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	return &Advertiser{
		transport: transport,
		services:  services,
		opts:      opts,
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

// Start begins advertising, retrying with exponential backoff on failure.
// Calling Start while active or retrying is a no-op.
func (a *Advertiser) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AdvActive || a.state == AdvRetrying {
		return
	}
	a.attempt = 0
	a.generation++
	a.tryStartLocked(a.generation)
}

// Stop halts advertising and cancels any pending retry. Idempotent.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Restart is Stop followed by Start; used whenever the registered service
// set changes.
func (a *Advertiser) Restart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	a.attempt = 0
	a.generation++
	a.tryStartLocked(a.generation)
}

// State returns the advertiser's current externally visible state.
func (a *Advertiser) State() AdvertisingState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Advertiser) stopLocked() {
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.state == AdvActive {
		if err := a.transport.StopAdvertising(); err != nil {
			a.logger.WithError(err).Warn("Failed to stop advertising")
		}
	}
	a.state = AdvStopped
}

// payloadServices bounds the advertised UUID set to what fits in one
// advertisement, preserving registration order as the priority order.
func (a *Advertiser) payloadServices() []string {
	uuids := a.services()
	if len(uuids) > a.opts.MaxServices {
		uuids = uuids[:a.opts.MaxServices]
	}
	return uuids
}

func (a *Advertiser) tryStartLocked(gen uint64) {
	a.attempt++
	uuids := a.payloadServices()

	err := a.transport.StartAdvertising(a.opts.DeviceName, uuids)
	if err == nil {
		a.state = AdvActive
		a.logger.WithFields(logrus.Fields{
			"services": len(uuids),
			"attempt":  a.attempt,
		}).Info("Advertising started")
		return
	}

	if a.attempt >= a.opts.MaxAttempts {
		a.state = AdvFailed
		a.logger.WithError(err).WithField("attempts", a.attempt).
			Error("Advertising failed; retry attempts exceeded, waiting for explicit restart")
		return
	}

	delay := a.opts.BaseDelay << (a.attempt - 1)
	a.state = AdvRetrying
	a.logger.WithError(err).WithFields(logrus.Fields{
		"attempt": a.attempt,
		"delay":   delay,
	}).Warn("Advertising start failed, scheduling retry")

	a.timer = a.afterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			return // superseded by Stop or Restart
		}
		a.tryStartLocked(gen)
	})
}
