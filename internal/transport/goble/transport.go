// Package goble adapts the go-ble peripheral role to the gatt.Transport
// boundary consumed by the multiplexer. It owns the physical BLE device,
// translates attribute callbacks into transport events, and pumps outbound
// notifications through per-subscriber ring buffers so the multiplexer's
// notify path never blocks on a slow peer.
package goble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"

	"github.com/openwearable/sensorhub/internal/gatt"
	"github.com/openwearable/sensorhub/internal/groutine"
)

const (
	// subscriberQueueSize bounds each peer's outbound frame buffer; the
	// oldest frame is overwritten when a peer cannot keep up.
	subscriberQueueSize = 64

	// readResponseTimeout bounds the wait for the multiplexer to answer a
	// read request. The multiplexer answers synchronously, so hitting this
	// indicates a routing bug, answered with a failure status.
	readResponseTimeout = time.Second

	// advertiseStartWindow is how long a failed advertise call has to
	// surface its error before the start is considered successful.
	advertiseStartWindow = 250 * time.Millisecond
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

type readResponse struct {
	status gatt.Status
	value  []byte
}

type outFrame struct {
	payload []byte
}

// subscriber is one peer's active notify or indicate stream on one
// characteristic.
type subscriber struct {
	queue mpmc.RichOverlappedRingBuffer[outFrame]
	wake  chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		queue: mpmc.NewOverlappedRingBuffer[outFrame](subscriberQueueSize),
		wake:  make(chan struct{}, 1),
	}
}

// Transport implements gatt.Transport on a go-ble peripheral device.
type Transport struct {
	dev    ble.Device
	logger *logrus.Logger

	handler atomic.Pointer[handlerBox]

	connMu sync.Mutex
	conns  map[string]ble.Conn

	subMu sync.Mutex
	subs  map[string]*subscriber // addr + "/" + charUUID

	pendMu    sync.Mutex
	pending   map[uint64]chan readResponse
	requestID atomic.Uint64

	advMu     sync.Mutex
	advCancel context.CancelFunc
}

type handlerBox struct{ h gatt.TransportHandler }

// New acquires the BLE device via DeviceFactory.
func New(logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire BLE device: %w", err)
	}
	return &Transport{
		dev:     dev,
		logger:  logger,
		conns:   make(map[string]ble.Conn),
		pending: make(map[uint64]chan readResponse),
		subs:    make(map[string]*subscriber),
	}, nil
}

// SetHandler implements gatt.Transport.
func (t *Transport) SetHandler(h gatt.TransportHandler) {
	t.handler.Store(&handlerBox{h: h})
}

func (t *Transport) currentHandler() gatt.TransportHandler {
	if box := t.handler.Load(); box != nil {
		return box.h
	}
	return nil
}

// DeclareService implements gatt.Transport: it maps the descriptor to a
// go-ble service with read/write/notify handlers bound back to this
// adapter.
func (t *Transport) DeclareService(desc gatt.ServiceDescriptor) error {
	svcUUID, err := ble.Parse(gatt.ExpandUUID(desc.UUID))
	if err != nil {
		return fmt.Errorf("bad service UUID %q: %w", desc.UUID, err)
	}
	svc := ble.NewService(svcUUID)

	for _, c := range desc.Characteristics {
		charUUID, err := ble.Parse(gatt.ExpandUUID(c.UUID))
		if err != nil {
			return fmt.Errorf("bad characteristic UUID %q: %w", c.UUID, err)
		}
		char := svc.NewCharacteristic(charUUID)
		id := c.UUID

		switch c.Mode {
		case gatt.AccessReadNotify:
			char.HandleRead(ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
				t.serveRead(req, rsp, id)
			}))
			char.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
				t.serveSubscription(req, n, id, false)
			}))
			char.HandleIndicate(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
				t.serveSubscription(req, n, id, true)
			}))
		case gatt.AccessWrite:
			char.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
				t.serveWrite(req, id)
			}))
		}
	}

	if err := t.dev.AddService(svc); err != nil {
		return fmt.Errorf("failed to add service %q: %w", desc.UUID, err)
	}
	return nil
}

// trackConn reports connects lazily: the peripheral role learns about a
// central from its first attribute request. Disconnects come from the
// connection's Disconnected channel.
func (t *Transport) trackConn(conn ble.Conn) string {
	addr := conn.RemoteAddr().String()

	t.connMu.Lock()
	_, known := t.conns[addr]
	if !known {
		t.conns[addr] = conn
	}
	t.connMu.Unlock()

	if known {
		return addr
	}
	if h := t.currentHandler(); h != nil {
		h.HandleConnect(addr)
	}
	groutine.Go(nil, "disconnect-watch/"+addr, func(context.Context) {
		<-conn.Disconnected()
		t.connMu.Lock()
		delete(t.conns, addr)
		t.connMu.Unlock()
		t.dropSubscribers(addr)
		if h := t.currentHandler(); h != nil {
			h.HandleDisconnect(addr)
		}
	})
	return addr
}

func (t *Transport) serveRead(req ble.Request, rsp ble.ResponseWriter, charUUID string) {
	addr := t.trackConn(req.Conn())
	h := t.currentHandler()
	if h == nil {
		rsp.SetStatus(ble.ErrUnlikely)
		return
	}

	id := t.requestID.Add(1)
	ch := make(chan readResponse, 1)
	t.pendMu.Lock()
	t.pending[id] = ch
	t.pendMu.Unlock()

	h.HandleReadRequest(addr, charUUID, id, req.Offset())

	select {
	case resp := <-ch:
		if resp.status != gatt.StatusSuccess {
			rsp.SetStatus(ble.ATTError(resp.status))
			return
		}
		if _, err := rsp.Write(resp.value); err != nil {
			t.logger.WithError(err).Debug("Read response write failed")
		}
	case <-time.After(readResponseTimeout):
		t.pendMu.Lock()
		delete(t.pending, id)
		t.pendMu.Unlock()
		rsp.SetStatus(ble.ErrUnlikely)
	}
}

// RespondRead implements gatt.Transport. Each request ID is answered at
// most once; late responses are dropped.
func (t *Transport) RespondRead(requestID uint64, status gatt.Status, value []byte) {
	t.pendMu.Lock()
	ch, ok := t.pending[requestID]
	delete(t.pending, requestID)
	t.pendMu.Unlock()
	if ok {
		ch <- readResponse{status: status, value: value}
	}
}

func (t *Transport) serveWrite(req ble.Request, charUUID string) {
	addr := t.trackConn(req.Conn())
	if h := t.currentHandler(); h != nil {
		value := make([]byte, len(req.Data()))
		copy(value, req.Data())
		h.HandleWriteRequest(addr, charUUID, value)
	}
}

// serveSubscription runs for the lifetime of one peer's subscription to one
// characteristic. go-ble invokes it when the peer enables notifications or
// indications and cancels the notifier's context when the peer disables
// them, so CCCD state changes are synthesized here as descriptor-write
// events for the multiplexer.
func (t *Transport) serveSubscription(req ble.Request, n ble.Notifier, charUUID string, indicate bool) {
	addr := t.trackConn(req.Conn())
	key := addr + "/" + charUUID

	sub := newSubscriber()
	t.subMu.Lock()
	t.subs[key] = sub
	t.subMu.Unlock()

	cccd := []byte{0x01, 0x00}
	if indicate {
		cccd = []byte{0x02, 0x00}
	}
	if h := t.currentHandler(); h != nil {
		h.HandleDescriptorWrite(addr, charUUID, gatt.CCCDUUID, cccd)
	}

	defer func() {
		t.subMu.Lock()
		if t.subs[key] == sub {
			delete(t.subs, key)
		}
		t.subMu.Unlock()
		if h := t.currentHandler(); h != nil {
			h.HandleDescriptorWrite(addr, charUUID, gatt.CCCDUUID, []byte{0x00, 0x00})
		}
	}()

	for {
		select {
		case <-n.Context().Done():
			return
		case <-sub.wake:
			for !sub.queue.IsEmpty() {
				frame, err := sub.queue.Dequeue()
				if err != nil {
					break
				}
				if _, err := n.Write(frame.payload); err != nil {
					t.logger.WithError(err).WithFields(logrus.Fields{
						"device":         addr,
						"characteristic": gatt.ShortenUUID(charUUID),
					}).Debug("Notification write failed")
					return
				}
			}
		}
	}
}

// Notify implements gatt.Transport: enqueue the frame on the subscriber's
// ring (overwriting the oldest frame if the peer is slow) and wake the
// pump. Never blocks the caller.
func (t *Transport) Notify(deviceAddr, charUUID string, value []byte, _ bool) error {
	key := deviceAddr + "/" + gatt.NormalizeUUID(charUUID)
	t.subMu.Lock()
	sub, ok := t.subs[key]
	t.subMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no active subscription for %s", gatt.ErrNotConnected, key)
	}

	payload := make([]byte, len(value))
	copy(payload, value)
	if overwrites, err := sub.queue.EnqueueM(outFrame{payload: payload}); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	} else if overwrites > 0 {
		t.logger.WithFields(logrus.Fields{
			"device":  deviceAddr,
			"dropped": overwrites,
		}).Debug("Peer lagging, oldest notification overwritten")
	}

	select {
	case sub.wake <- struct{}{}:
	default:
	}
	return nil
}

func (t *Transport) dropSubscribers(deviceAddr string) {
	prefix := deviceAddr + "/"
	t.subMu.Lock()
	for key := range t.subs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(t.subs, key)
		}
	}
	t.subMu.Unlock()
}

// StartAdvertising implements gatt.Transport. go-ble's advertise call
// blocks for the advertisement's lifetime, so it runs on its own goroutine;
// an error surfaced within the start window is returned to the caller for
// the advertiser's retry logic.
func (t *Transport) StartAdvertising(name string, serviceUUIDs []string) error {
	uuids := make([]ble.UUID, 0, len(serviceUUIDs))
	for _, s := range serviceUUIDs {
		u, err := ble.Parse(gatt.ExpandUUID(s))
		if err != nil {
			return fmt.Errorf("bad advertised UUID %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}

	t.advMu.Lock()
	defer t.advMu.Unlock()
	if t.advCancel != nil {
		t.advCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.advCancel = cancel

	errCh := make(chan error, 1)
	groutine.Go(ctx, "advertise", func(ctx context.Context) {
		errCh <- t.dev.AdvertiseNameAndServices(ctx, name, uuids...)
	})

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			cancel()
			t.advCancel = nil
			return fmt.Errorf("%w: %v", gatt.ErrAdvertising, err)
		}
		return nil
	case <-time.After(advertiseStartWindow):
		return nil
	}
}

// StopAdvertising implements gatt.Transport.
func (t *Transport) StopAdvertising() error {
	t.advMu.Lock()
	defer t.advMu.Unlock()
	if t.advCancel != nil {
		t.advCancel()
		t.advCancel = nil
	}
	return nil
}

// Close implements gatt.Transport.
func (t *Transport) Close() error {
	_ = t.StopAdvertising()
	t.connMu.Lock()
	for _, conn := range t.conns {
		_ = conn.Close()
	}
	t.conns = make(map[string]ble.Conn)
	t.connMu.Unlock()
	return t.dev.Stop()
}
