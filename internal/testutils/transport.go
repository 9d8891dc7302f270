package testutils

import (
	"sync"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// SentNotification records one outbound notification observed by the fake
// transport.
type SentNotification struct {
	DeviceAddr  string
	CharUUID    string
	Value       []byte
	AckRequired bool
}

// ReadResponse records one response to a read request.
type ReadResponse struct {
	RequestID uint64
	Status    gatt.Status
	Value     []byte
}

// AdvertiseCall records one StartAdvertising invocation.
type AdvertiseCall struct {
	Name         string
	ServiceUUIDs []string
}

// FakeTransport implements gatt.Transport in memory. Tests drive inbound
// traffic through the Connect/Write/Read helpers and inspect the recorded
// outbound traffic.
type FakeTransport struct {
	mu sync.Mutex

	handler       gatt.TransportHandler
	services      []gatt.ServiceDescriptor
	notifications []SentNotification
	responses     []ReadResponse
	advertises    []AdvertiseCall
	stops         int
	advertising   bool
	closed        bool

	// AdvertiseFailures makes the next N StartAdvertising calls fail.
	AdvertiseFailures int
	// NotifyErrs fails Notify for the listed device addresses.
	NotifyErrs map[string]error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{NotifyErrs: make(map[string]error)}
}

func (f *FakeTransport) SetHandler(h gatt.TransportHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *FakeTransport) DeclareService(desc gatt.ServiceDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = append(f.services, desc)
	return nil
}

func (f *FakeTransport) RespondRead(requestID uint64, status gatt.Status, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, ReadResponse{RequestID: requestID, Status: status, Value: append([]byte(nil), value...)})
}

func (f *FakeTransport) Notify(deviceAddr, charUUID string, value []byte, ackRequired bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.NotifyErrs[deviceAddr]; err != nil {
		return err
	}
	f.notifications = append(f.notifications, SentNotification{
		DeviceAddr:  deviceAddr,
		CharUUID:    charUUID,
		Value:       append([]byte(nil), value...),
		AckRequired: ackRequired,
	})
	return nil
}

func (f *FakeTransport) StartAdvertising(name string, serviceUUIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertises = append(f.advertises, AdvertiseCall{Name: name, ServiceUUIDs: append([]string(nil), serviceUUIDs...)})
	if f.AdvertiseFailures > 0 {
		f.AdvertiseFailures--
		return gatt.ErrAdvertising
	}
	f.advertising = true
	return nil
}

func (f *FakeTransport) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.advertising = false
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Connect simulates a central connecting.
func (f *FakeTransport) Connect(deviceAddr string) {
	f.currentHandler().HandleConnect(deviceAddr)
}

// Disconnect simulates a central dropping the link.
func (f *FakeTransport) Disconnect(deviceAddr string) {
	f.currentHandler().HandleDisconnect(deviceAddr)
}

// Read simulates a characteristic read request.
func (f *FakeTransport) Read(deviceAddr, charUUID string, requestID uint64, offset int) {
	f.currentHandler().HandleReadRequest(deviceAddr, charUUID, requestID, offset)
}

// Write simulates a characteristic write request.
func (f *FakeTransport) Write(deviceAddr, charUUID string, value []byte) {
	f.currentHandler().HandleWriteRequest(deviceAddr, charUUID, value)
}

// Subscribe simulates a CCCD write enabling notifications or indications.
func (f *FakeTransport) Subscribe(deviceAddr, charUUID string, indicate bool) {
	value := []byte{0x01, 0x00}
	if indicate {
		value = []byte{0x02, 0x00}
	}
	f.currentHandler().HandleDescriptorWrite(deviceAddr, charUUID, gatt.CCCDUUID, value)
}

// Unsubscribe simulates a CCCD write disabling delivery.
func (f *FakeTransport) Unsubscribe(deviceAddr, charUUID string) {
	f.currentHandler().HandleDescriptorWrite(deviceAddr, charUUID, gatt.CCCDUUID, []byte{0x00, 0x00})
}

// WriteDescriptor simulates a write to an arbitrary descriptor.
func (f *FakeTransport) WriteDescriptor(deviceAddr, charUUID, descriptorUUID string, value []byte) {
	f.currentHandler().HandleDescriptorWrite(deviceAddr, charUUID, descriptorUUID, value)
}

func (f *FakeTransport) currentHandler() gatt.TransportHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

// Services returns the declared service descriptors.
func (f *FakeTransport) Services() []gatt.ServiceDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gatt.ServiceDescriptor(nil), f.services...)
}

// Notifications returns all recorded notifications.
func (f *FakeTransport) Notifications() []SentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentNotification(nil), f.notifications...)
}

// NotificationsFor filters recorded notifications by characteristic.
func (f *FakeTransport) NotificationsFor(charUUID string) []SentNotification {
	var out []SentNotification
	for _, n := range f.Notifications() {
		if n.CharUUID == charUUID {
			out = append(out, n)
		}
	}
	return out
}

// ClearNotifications drops the recorded notifications.
func (f *FakeTransport) ClearNotifications() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = nil
}

// Responses returns all recorded read responses.
func (f *FakeTransport) Responses() []ReadResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReadResponse(nil), f.responses...)
}

// LastResponse returns the most recent read response.
func (f *FakeTransport) LastResponse() (ReadResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return ReadResponse{}, false
	}
	return f.responses[len(f.responses)-1], true
}

// AdvertiseCalls returns all StartAdvertising invocations.
func (f *FakeTransport) AdvertiseCalls() []AdvertiseCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AdvertiseCall(nil), f.advertises...)
}

// Advertising reports whether advertising is currently on.
func (f *FakeTransport) Advertising() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advertising
}

// StopCount returns how many times StopAdvertising was called.
func (f *FakeTransport) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
