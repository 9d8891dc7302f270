package gatt

// Transport is the radio collaborator boundary. The real implementation
// (internal/transport/goble) sits on a BLE stack; tests substitute an
// in-memory fake. Connection establishment, MTU negotiation, and encryption
// all live behind this interface.
type Transport interface {
	// SetHandler installs the single event sink. Must be called before any
	// service is declared; the transport delivers every inbound event to it.
	SetHandler(h TransportHandler)

	// DeclareService exposes a service and its characteristics to centrals.
	DeclareService(desc ServiceDescriptor) error

	// RespondRead answers a read request exactly once. A non-success status
	// must carry a nil value.
	RespondRead(requestID uint64, status Status, value []byte)

	// Notify pushes a characteristic value to one connected central.
	// ackRequired selects indication over notification.
	Notify(deviceAddr, charUUID string, value []byte, ackRequired bool) error

	// StartAdvertising announces the given service UUIDs under the device
	// name. Returns an error if the radio rejects the advertisement.
	StartAdvertising(name string, serviceUUIDs []string) error

	// StopAdvertising halts an active advertisement. Idempotent.
	StopAdvertising() error

	// Close tears the transport down and releases the radio.
	Close() error
}

// TransportHandler receives all inbound transport events. Implemented by
// the multiplexer. Handlers must not block the transport's event goroutine.
type TransportHandler interface {
	// HandleConnect and HandleDisconnect report link establishment changes.
	// Both are idempotent.
	HandleConnect(deviceAddr string)
	HandleDisconnect(deviceAddr string)

	// HandleReadRequest routes a characteristic read. The handler must
	// answer via Transport.RespondRead exactly once, using requestID.
	HandleReadRequest(deviceAddr, charUUID string, requestID uint64, offset int)

	// HandleWriteRequest routes a characteristic write.
	HandleWriteRequest(deviceAddr, charUUID string, value []byte)

	// HandleDescriptorWrite routes a descriptor write. Only the CCCD is
	// meaningful; writes to other descriptors are answered with a failure
	// status by the transport itself.
	HandleDescriptorWrite(deviceAddr, charUUID, descriptorUUID string, value []byte)
}
