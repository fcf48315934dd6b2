// Package gpio provides GPIO access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// EdgeHandler is called with the timestamp of each falling edge on the
// sensor line. It runs on the event goroutine and must not block.
type EdgeHandler func(time.Time)

// Watcher owns the sensor input line.
type Watcher interface {
	// Close releases the input line.
	Close() error
}

// Driver drives the output pulse line (and an optional status LED that
// mirrors it).
type Driver interface {
	// Set drives the output high or low.
	Set(high bool) error

	// Close drives the output low and releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering).
const (
	DefaultPinIn  = 17 // wheel sensor input
	DefaultPinOut = 27 // synthesized pulse output
	DefaultPinLED = 22 // status LED mirroring the output (-1 disables)
)
