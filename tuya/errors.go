package tuya

import "errors"

var (
	// ErrCommandTimeout is returned when the device does not answer a
	// command within the configured timeout. The wait for the connection to
	// be established is not counted.
	ErrCommandTimeout = errors.New("timeout waiting for device response")

	// ErrConnectionLost fails pending commands when the socket drops; the
	// transport reconnects on its own.
	ErrConnectionLost = errors.New("connection to device lost")

	// ErrTransportClosed reports use of the transport after Close. This is a
	// programmer error.
	ErrTransportClosed = errors.New("transport is closed")
)
