// Package transport provides the byte-stream abstraction the host daemon
// talks to an MCU over: a real serial port on hardware, or a pty pair in
// tests and cmd/mcusim. It also covers reconnect-with-backoff when an MCU
// stops answering.
package transport

import (
	"io"
)

// Stream is the byte-level link to an MCU. It is intentionally narrower
// than net.Conn: the wire codec only ever reads and writes bytes, never
// needs addresses or deadlines of its own.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}
