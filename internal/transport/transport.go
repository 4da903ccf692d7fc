// Package transport provides the byte-oriented duplex channels used to talk
// to sweep devices: a serial port or a TCP socket. The sweep core never
// assumes read chunk boundaries align with packet boundaries.
package transport

import (
	"errors"
	"io"
)

// ErrNotOpen is returned for reads and writes on a transport that has not
// been opened or has been closed.
var ErrNotOpen = errors.New("transport is not open")

// Transport is a duplex byte channel to a device.
type Transport interface {
	io.ReadWriteCloser

	// Open establishes the connection. Reopening after Close is allowed.
	Open() error

	// Describe names the endpoint for logs.
	Describe() string
}
