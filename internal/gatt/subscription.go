package gatt

import (
	"encoding/binary"

	"github.com/cornelk/hashmap"
)

// SubscriptionState is the per-(device, characteristic) notification
// configuration written through the CCCD. An absent entry is equivalent
// to Disabled.
type SubscriptionState uint8

const (
	Disabled SubscriptionState = iota
	NotifyEnabled
	IndicateEnabled
)

func (s SubscriptionState) String() string {
	switch s {
	case NotifyEnabled:
		return "notify"
	case IndicateEnabled:
		return "indicate"
	default:
		return "disabled"
	}
}

// Enabled reports whether any delivery mode is active.
func (s SubscriptionState) Enabled() bool {
	return s == NotifyEnabled || s == IndicateEnabled
}

// CCCDUUID is the Client Characteristic Configuration Descriptor identifier.
// It is the only descriptor the multiplexer interprets.
const CCCDUUID = "2902"

// DecodeCCCD maps a CCCD write payload to a SubscriptionState. The value is
// a 16-bit little-endian bitfield; indication takes precedence over
// notification when a central sets both bits.
func DecodeCCCD(value []byte) SubscriptionState {
	if len(value) < 2 {
		return Disabled
	}
	bits := binary.LittleEndian.Uint16(value)
	switch {
	case bits&0x0002 != 0:
		return IndicateEnabled
	case bits&0x0001 != 0:
		return NotifyEnabled
	default:
		return Disabled
	}
}

// SubscriptionStore tracks SubscriptionState keyed by (device address,
// characteristic UUID). It is written from the transport-event path and read
// from the notify fan-out path, potentially on different goroutines, so it
// is backed by a lock-free concurrent map.
type SubscriptionStore struct {
	entries *hashmap.Map[string, SubscriptionState]
}

// NewSubscriptionStore creates an empty store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{entries: hashmap.New[string, SubscriptionState]()}
}

func subscriptionKey(deviceAddr, charUUID string) string {
	return deviceAddr + "/" + NormalizeUUID(charUUID)
}

// Set records the subscription state for one (device, characteristic) pair.
// Setting Disabled removes the entry so absent-key remains the canonical
// disabled representation.
func (s *SubscriptionStore) Set(deviceAddr, charUUID string, state SubscriptionState) {
	key := subscriptionKey(deviceAddr, charUUID)
	if state == Disabled {
		s.entries.Del(key)
		return
	}
	s.entries.Set(key, state)
}

// Get returns the current state for one pair; absent entries read as
// Disabled.
func (s *SubscriptionStore) Get(deviceAddr, charUUID string) SubscriptionState {
	state, ok := s.entries.Get(subscriptionKey(deviceAddr, charUUID))
	if !ok {
		return Disabled
	}
	return state
}

// PurgeDevice removes every entry belonging to the given device address.
// Called on disconnect so a reconnecting central starts from Disabled for
// all characteristics.
func (s *SubscriptionStore) PurgeDevice(deviceAddr string) {
	prefix := deviceAddr + "/"
	var stale []string
	s.entries.Range(func(key string, _ SubscriptionState) bool {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		s.entries.Del(key)
	}
}

// Len returns the number of enabled entries across all devices.
func (s *SubscriptionStore) Len() int {
	return s.entries.Len()
}
