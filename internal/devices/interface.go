// Package devices defines the common interface for sweep device backends.
package devices

import (
	"github.com/freqsweep/freqsweep/internal/sweep"
)

// SweepDevice is an interface that provides standard methods for the various
// sweep device backends
type SweepDevice interface {
	// StartDevice connects to the device and launches its read loop.
	StartDevice() error

	// DeviceName returns the configured device name.
	DeviceName() string

	// Controller returns the device's sweep controller.
	Controller() *sweep.Controller

	// SweepConfig returns the sweep configuration from the config file,
	// used as the default when a start request carries no overrides.
	SweepConfig() sweep.Config
}
