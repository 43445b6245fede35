package transport

import (
	"fmt"
	"os"

	"github.com/creack/pty"
)

// PtyPair is a pty master stream paired with its slave device path, used
// by cmd/mcusim and integration tests to stand in for a real serial link
// without any hardware present.
type PtyPair struct {
	master *os.File
	slave  *os.File
}

// OpenPtyPair opens a fresh pty pair. SlavePath() gives the device path a
// serial opener such as OpenSerial uses for one side (cmd/hostd, when
// talking to cmd/mcusim); Master satisfies Stream for the other side
// (cmd/mcusim's MCU end).
func OpenPtyPair() (*PtyPair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("transport: open pty pair: %w", err)
	}
	return &PtyPair{master: master, slave: slave}, nil
}

// SlavePath returns the pty slave's device path.
func (p *PtyPair) SlavePath() string { return p.slave.Name() }

// Master returns the master end as a Stream; cmd/mcusim serves the MCU
// side of the link over it.
func (p *PtyPair) Master() Stream { return fileStream{p.master} }

// Slave returns the slave end as a Stream, for an in-process peer to
// read/write directly without opening SlavePath through the OS again.
func (p *PtyPair) Slave() Stream { return fileStream{p.slave} }

// Close closes both ends.
func (p *PtyPair) Close() error {
	err1 := p.master.Close()
	err2 := p.slave.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

type fileStream struct{ f *os.File }

func (s fileStream) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s fileStream) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s fileStream) Close() error                { return s.f.Close() }
