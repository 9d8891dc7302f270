package gatt

import (
	"errors"
	"fmt"
)

// Status is the protocol-level result code returned for read and write
// requests. Values mirror the ATT error codes a central will see.
type Status uint8

const (
	StatusSuccess         Status = 0x00
	StatusReadNotPermit   Status = 0x02
	StatusWriteNotPermit  Status = 0x03
	StatusRequestNotSupp  Status = 0x06
	StatusInvalidOffset   Status = 0x07
	StatusAttrNotFound    Status = 0x0a
	StatusUnlikelyError   Status = 0x0e
	StatusInsuffResources Status = 0x11
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReadNotPermit:
		return "read_not_permitted"
	case StatusWriteNotPermit:
		return "write_not_permitted"
	case StatusRequestNotSupp:
		return "request_not_supported"
	case StatusAttrNotFound:
		return "attribute_not_found"
	case StatusUnlikelyError:
		return "unlikely_error"
	case StatusInsuffResources:
		return "insufficient_resources"
	default:
		return fmt.Sprintf("status_0x%02x", uint8(s))
	}
}

// RegistryFailure identifies the specific kind of registry error.
type RegistryFailure string

const (
	DuplicateService      RegistryFailure = "duplicate_service"
	UnknownService        RegistryFailure = "unknown_service"
	UnknownCharacteristic RegistryFailure = "unknown_characteristic"
	InvalidUUID           RegistryFailure = "invalid_uuid"
)

// RegistryError represents a service/characteristic registration or lookup
// problem. All registry errors are local and recoverable.
type RegistryError struct {
	Failure RegistryFailure
	UUID    string
}

func (e *RegistryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.UUID == "" {
		return string(e.Failure)
	}
	return fmt.Sprintf("%s: %s", e.Failure, e.UUID)
}

// Is allows errors.Is to compare RegistryError values by Failure kind.
func (e *RegistryError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*RegistryError)
	if !ok {
		return false
	}
	return e.Failure == t.Failure
}

// Predefined sentinel errors for registry failures.
var (
	ErrDuplicateService      = &RegistryError{Failure: DuplicateService}
	ErrUnknownService        = &RegistryError{Failure: UnknownService}
	ErrUnknownCharacteristic = &RegistryError{Failure: UnknownCharacteristic}
	ErrInvalidUUID           = &RegistryError{Failure: InvalidUUID}
)

// Transport and advertising errors.
var (
	ErrNotConnected    = errors.New("device not connected")
	ErrAdvertising     = errors.New("advertising failed")
	ErrRetriesExceeded = errors.New("advertising retry attempts exceeded")
	ErrServerClosed    = errors.New("server closed")
)
