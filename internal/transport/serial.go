package transport

import (
	"fmt"

	"github.com/pkg/term"
)

// supportedBauds mirrors the direwolf-lineage serial_port_open contract:
// an explicit allow-list rather than handing an arbitrary integer to the
// OS, so a typo'd config value fails at startup instead of silently
// falling back to a wrong speed on real hardware.
var supportedBauds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true, 250000: true,
}

// SerialStream wraps github.com/pkg/term in raw mode, the same library
// and mode the rest of this codebase's serial I/O is built on.
type SerialStream struct {
	t *term.Term
}

// OpenSerial opens device (e.g. "/dev/ttyACM0") in raw mode at baud. baud
// of 0 leaves the line speed untouched.
func OpenSerial(device string, baud int) (*SerialStream, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}
	if baud != 0 {
		if !supportedBauds[baud] {
			_ = t.Close()
			return nil, fmt.Errorf("transport: unsupported baud rate %d", baud)
		}
		if err := t.SetSpeed(baud); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("transport: set baud %d on %s: %w", baud, device, err)
		}
	}
	return &SerialStream{t: t}, nil
}

func (s *SerialStream) Read(p []byte) (int, error)  { return s.t.Read(p) }
func (s *SerialStream) Write(p []byte) (int, error) { return s.t.Write(p) }
func (s *SerialStream) Close() error                { return s.t.Close() }
