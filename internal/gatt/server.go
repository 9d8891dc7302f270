package gatt

import (
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
)

// ServerOptions configures the multiplexer.
type ServerOptions struct {
	Advertising AdvertiserOptions

	// MaxNotifyFailures is the number of consecutive per-device notify
	// failures before the peer is evicted from the connected set.
	MaxNotifyFailures int
}

// Server is the GATT multiplexer: the single point of contact with the
// transport. It demultiplexes inbound protocol operations by characteristic
// identifier to the owning sensor session, and relays outbound responses
// and notifications back, filtered by per-device subscription state.
//
// All failures handled here are local and recoverable: unknown
// characteristics and disconnected devices are answered with protocol
// failure statuses, never propagated as fatal errors.
type Server struct {
	transport  Transport
	registry   *Registry
	subs       *SubscriptionStore
	devices    *hashmap.Map[string, struct{}]
	failCounts *hashmap.Map[string, *atomic.Int32]
	advertiser *Advertiser
	opts       ServerOptions
	logger     *logrus.Logger
	closed     atomic.Bool
}

// NewServer wires a multiplexer to the transport and installs itself as the
// transport's event handler.
func NewServer(transport Transport, opts ServerOptions, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.MaxNotifyFailures <= 0 {
		opts.MaxNotifyFailures = 3
	}
	s := &Server{
		transport:  transport,
		registry:   NewRegistry(),
		subs:       NewSubscriptionStore(),
		devices:    hashmap.New[string, struct{}](),
		failCounts: hashmap.New[string, *atomic.Int32](),
		opts:       opts,
		logger:     logger,
	}
	s.advertiser = NewAdvertiser(transport, s.registry.ServiceUUIDs, opts.Advertising, logger)
	transport.SetHandler(s)
	return s
}

// AddService registers a session's service and characteristics, declares
// them on the transport, and restarts advertising so the new service is
// announced.
func (s *Server) AddService(session Session) error {
	if err := s.registry.AddService(session); err != nil {
		return err
	}
	desc := session.Descriptor()
	if err := s.transport.DeclareService(desc); err != nil {
		// Roll the registration back so routing and transport stay in sync.
		_ = s.registry.RemoveService(desc.UUID)
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"service":         ShortenUUID(desc.UUID),
		"characteristics": len(desc.Characteristics),
	}).Info("Service registered")
	s.advertiser.Restart()
	return nil
}

// Advertiser exposes advertising control (explicit start at boot, restart
// after the registered service set settles).
func (s *Server) Advertiser() *Advertiser {
	return s.advertiser
}

// Subscriptions exposes the subscription store for read-only inspection.
func (s *Server) Subscriptions() *SubscriptionStore {
	return s.subs
}

// ConnectedDevices returns the addresses currently link-established.
func (s *Server) ConnectedDevices() []string {
	addrs := make([]string, 0, s.devices.Len())
	s.devices.Range(func(addr string, _ struct{}) bool {
		addrs = append(addrs, addr)
		return true
	})
	return addrs
}

// IsConnected reports whether the device address is link-established.
func (s *Server) IsConnected(deviceAddr string) bool {
	_, ok := s.devices.Get(deviceAddr)
	return ok
}

// Close stops advertising, clears the registry, and releases the transport.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	s.advertiser.Stop()
	s.registry.Clear()
	return s.transport.Close()
}

// Notify fans one frame out to every connected device whose subscription for
// this characteristic is enabled. Per-device failures do not abort delivery
// to other peers; a peer that fails MaxNotifyFailures times in a row is
// evicted from the connected set. Implements the Notifier interface consumed
// by sensor sessions.
func (s *Server) Notify(charUUID string, value []byte, ackRequired bool) {
	if s.closed.Load() {
		return
	}
	id := NormalizeUUID(charUUID)
	var evicted []string
	s.devices.Range(func(addr string, _ struct{}) bool {
		state := s.subs.Get(addr, id)
		if !state.Enabled() {
			return true
		}
		ack := ackRequired || state == IndicateEnabled
		if err := s.transport.Notify(addr, id, value, ack); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"device":         addr,
				"characteristic": ShortenUUID(id),
			}).Warn("Notify failed for peer")
			if s.recordNotifyFailure(addr) {
				evicted = append(evicted, addr)
			}
			return true
		}
		s.resetNotifyFailures(addr)
		return true
	})
	for _, addr := range evicted {
		s.logger.WithField("device", addr).Warn("Evicting peer after repeated notify failures")
		s.HandleDisconnect(addr)
	}
}

func (s *Server) recordNotifyFailure(deviceAddr string) (evict bool) {
	counter, _ := s.failCounts.GetOrInsert(deviceAddr, &atomic.Int32{})
	return int(counter.Add(1)) >= s.opts.MaxNotifyFailures
}

func (s *Server) resetNotifyFailures(deviceAddr string) {
	if counter, ok := s.failCounts.Get(deviceAddr); ok {
		counter.Store(0)
	}
}

// HandleConnect records the peer and broadcasts the connect to every
// session. Idempotent.
func (s *Server) HandleConnect(deviceAddr string) {
	if _, loaded := s.devices.GetOrInsert(deviceAddr, struct{}{}); loaded {
		return
	}
	s.logger.WithField("device", deviceAddr).Info("Central connected")
	for _, session := range s.registry.Sessions() {
		session.OnDeviceConnected(deviceAddr)
	}
}

// HandleDisconnect removes the peer, purges all its subscription entries so
// a reconnect starts from Disabled, and broadcasts the disconnect to every
// session. Idempotent.
func (s *Server) HandleDisconnect(deviceAddr string) {
	if _, ok := s.devices.Get(deviceAddr); !ok {
		return
	}
	s.devices.Del(deviceAddr)
	s.subs.PurgeDevice(deviceAddr)
	s.failCounts.Del(deviceAddr)
	s.logger.WithField("device", deviceAddr).Info("Central disconnected")
	for _, session := range s.registry.Sessions() {
		session.OnDeviceDisconnected(deviceAddr)
	}
}

// HandleReadRequest routes a characteristic read to the owning session and
// relays its result as a read response. Unknown characteristics and reads
// the session cannot serve are answered with failure statuses.
func (s *Server) HandleReadRequest(deviceAddr, charUUID string, requestID uint64, offset int) {
	session, err := s.registry.Owner(charUUID)
	if err != nil {
		s.logger.WithField("characteristic", ShortenUUID(charUUID)).
			Debug("Read request for unknown characteristic")
		s.transport.RespondRead(requestID, StatusAttrNotFound, nil)
		return
	}
	value, ok := session.HandleRead(deviceAddr, charUUID)
	if !ok {
		s.transport.RespondRead(requestID, StatusReadNotPermit, nil)
		return
	}
	if offset > len(value) {
		s.transport.RespondRead(requestID, StatusInvalidOffset, nil)
		return
	}
	s.transport.RespondRead(requestID, StatusSuccess, value[offset:])
}

// HandleWriteRequest routes a characteristic write to the owning session.
// Writes from devices not in the connected set are rejected without routing.
func (s *Server) HandleWriteRequest(deviceAddr, charUUID string, value []byte) {
	if !s.IsConnected(deviceAddr) {
		s.logger.WithField("device", deviceAddr).Debug("Write from unconnected device rejected")
		return
	}
	session, err := s.registry.Owner(charUUID)
	if err != nil {
		s.logger.WithField("characteristic", ShortenUUID(charUUID)).
			Debug("Write request for unknown characteristic")
		return
	}
	session.HandleWrite(deviceAddr, charUUID, value)
}

// HandleDescriptorWrite interprets CCCD writes: it updates the subscription
// store and, when the new state is enabled, asks the owning session to push
// its current value immediately so the central is synchronized without
// waiting for the next periodic update. Writes from devices not in the
// connected set are rejected without storing state, so disconnect-time
// purging covers every stored entry.
func (s *Server) HandleDescriptorWrite(deviceAddr, charUUID, descriptorUUID string, value []byte) {
	if NormalizeUUID(descriptorUUID) != CCCDUUID {
		s.logger.WithField("descriptor", ShortenUUID(descriptorUUID)).
			Debug("Ignoring write to non-CCCD descriptor")
		return
	}
	if !s.IsConnected(deviceAddr) {
		s.logger.WithField("device", deviceAddr).Debug("CCCD write from unconnected device rejected")
		return
	}
	session, err := s.registry.Owner(charUUID)
	if err != nil {
		s.logger.WithField("characteristic", ShortenUUID(charUUID)).
			Debug("CCCD write for unknown characteristic")
		return
	}
	state := DecodeCCCD(value)
	s.subs.Set(deviceAddr, charUUID, state)
	s.logger.WithFields(logrus.Fields{
		"device":         deviceAddr,
		"characteristic": ShortenUUID(charUUID),
		"state":          state.String(),
	}).Debug("Subscription state changed")

	if state.Enabled() {
		session.PushCurrent(charUUID)
	}
}
