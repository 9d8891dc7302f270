package main

import (
	"errors"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// FormatUserError rewrites internal errors into actionable messages for
// the terminal. Unknown errors pass through unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, gatt.ErrRetriesExceeded):
		return "advertising failed repeatedly - check that the Bluetooth adapter is powered on and not in use"
	case errors.Is(err, gatt.ErrAdvertising):
		return "could not start advertising: " + err.Error()
	default:
		return err.Error()
	}
}
