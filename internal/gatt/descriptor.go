package gatt

// AccessMode describes how a central may interact with a characteristic.
// The set is closed: sensor data characteristics are readable and
// notifiable, trigger characteristics are write-only.
type AccessMode int

const (
	// AccessReadNotify marks a characteristic that serves the latest sensor
	// frame on read and pushes frames to subscribed centrals.
	AccessReadNotify AccessMode = iota

	// AccessWrite marks an edge-triggered command characteristic. Written
	// payload content is ignored.
	AccessWrite
)

func (m AccessMode) String() string {
	switch m {
	case AccessReadNotify:
		return "read-notify"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}

// CharacteristicDescriptor is the immutable protocol identity of one
// characteristic within a service.
type CharacteristicDescriptor struct {
	UUID string     `json:"uuid"`
	Mode AccessMode `json:"mode"`
}

// ServiceDescriptor is the immutable protocol surface of one sensor session:
// a service UUID plus an ordered set of characteristics. Built once at
// session setup; the registry references it but never mutates it.
type ServiceDescriptor struct {
	UUID            string                     `json:"uuid"`
	Characteristics []CharacteristicDescriptor `json:"characteristics"`
}

// NewServiceDescriptor normalizes all UUIDs up front so routing lookups are
// exact string matches.
func NewServiceDescriptor(serviceUUID string, chars ...CharacteristicDescriptor) ServiceDescriptor {
	desc := ServiceDescriptor{
		UUID:            NormalizeUUID(serviceUUID),
		Characteristics: make([]CharacteristicDescriptor, 0, len(chars)),
	}
	for _, c := range chars {
		c.UUID = NormalizeUUID(c.UUID)
		desc.Characteristics = append(desc.Characteristics, c)
	}
	return desc
}

// Characteristic returns the descriptor for the given characteristic UUID,
// or false if the service does not contain it.
func (d ServiceDescriptor) Characteristic(charUUID string) (CharacteristicDescriptor, bool) {
	id := NormalizeUUID(charUUID)
	for _, c := range d.Characteristics {
		if c.UUID == id {
			return c, true
		}
	}
	return CharacteristicDescriptor{}, false
}

// Session is the uniform surface the multiplexer routes inbound protocol
// traffic to. Each sensor session owns exactly one ServiceDescriptor.
//
// Implementations must not block: read handlers serve from a latest-value
// cache and write handlers only schedule work.
type Session interface {
	// Descriptor returns the session's immutable protocol surface.
	Descriptor() ServiceDescriptor

	// HandleRead returns the current value for a readable characteristic.
	// A nil slice with ok=false means the read cannot be served and the
	// transport should answer with a failure status.
	HandleRead(deviceAddr, charUUID string) (value []byte, ok bool)

	// HandleWrite delivers a write from a connected central. Used only by
	// trigger characteristics; payload content is ignored.
	HandleWrite(deviceAddr, charUUID string, value []byte)

	// PushCurrent asks the session to immediately notify the current value
	// of the given characteristic, so a freshly subscribed central is
	// synchronized without waiting for the next periodic update.
	PushCurrent(charUUID string)

	// OnDeviceConnected and OnDeviceDisconnected let the session keep its
	// own best-effort view of reachable peers.
	OnDeviceConnected(deviceAddr string)
	OnDeviceDisconnected(deviceAddr string)
}

// Notifier is the outbound half of the multiplexer as seen by sessions:
// fan-out of one frame to every subscribed, connected central.
type Notifier interface {
	Notify(charUUID string, value []byte, ackRequired bool)
}
