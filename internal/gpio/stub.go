//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(pin int, handler EdgeHandler) (*RealWatcher, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}

// ReadLevel returns an error on non-Linux platforms.
func ReadLevel(pin int) (int, error) {
	return 0, errUnsupported
}

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(outPin, ledPin int) (*RealDriver, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (d *RealDriver) Set(high bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (d *RealDriver) Close() error {
	return nil
}
