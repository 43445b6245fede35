// Package glue wires the wire protocol codec to a transport.Stream and the
// safety supervisor: a read loop (in the spirit of the teacher's
// byte-at-a-time listen-thread pattern) decodes inbound frames and feeds
// MCU status into the Monitor, while outbound calls encode and write
// commands (SPEC_FULL.md §4.3, §4.6).
package glue

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tinyforge/tinyforge/internal/safety"
	"github.com/tinyforge/tinyforge/internal/transport"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

// readBufSize is the chunk size each Stream.Read call requests; the
// decoder itself has no size limit of its own, this just bounds one
// syscall's worth of work.
const readBufSize = 512

// Link binds one transport.Stream to one wire/proto registry and, if
// non-nil, a safety.Monitor that inbound GetStatusResponse frames feed.
type Link struct {
	stream transport.Stream
	enc    *proto.Encoder
	dec    *proto.Decoder
	mon    *safety.Monitor
	logger *log.Logger
}

// New returns a Link. registry must already carry every command name/id
// pair negotiated with the MCU (see NegotiateCommands).
func New(stream transport.Stream, registry *proto.CommandRegistry, mon *safety.Monitor, logger *log.Logger) *Link {
	if logger == nil {
		logger = log.Default()
	}
	return &Link{
		stream: stream,
		enc:    proto.NewEncoder(registry),
		dec:    proto.NewDecoder(registry),
		mon:    mon,
		logger: logger,
	}
}

// Send encodes and writes msg.
func (l *Link) Send(msg proto.Message) error {
	var buf [proto.MaxFrameSize]byte
	frame, err := l.enc.Encode(msg, buf[:0])
	if err != nil {
		return fmt.Errorf("glue: encode %s: %w", msg.Kind(), err)
	}
	if _, err := l.stream.Write(frame); err != nil {
		return fmt.Errorf("glue: write %s: %w", msg.Kind(), err)
	}
	return nil
}

// Run reads from the stream until ctx is done or a read error occurs,
// dispatching each decoded message to onMessage. A GetStatusResponse
// carrying EmergencyStopped is always also routed into the bound Monitor
// before onMessage sees it, so a caller can't forget to check it.
func (l *Link) Run(ctx context.Context, onMessage func(proto.Message)) error {
	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := l.stream.Read(buf)
		if err != nil {
			return fmt.Errorf("glue: read: %w", err)
		}
		if n == 0 {
			continue
		}
		l.dec.Feed(buf[:n])

		for {
			msg, _, ok, err := l.dec.Next()
			if err != nil {
				l.logger.Warn("discarding malformed frame", "err", err)
				continue
			}
			if !ok {
				break
			}
			if sr, isStatus := msg.(proto.GetStatusResponse); isStatus && sr.EmergencyStopped && l.mon != nil {
				l.mon.TriggerEmergencyStop(&safety.Violation{Kind: safety.StepperDriverFault})
			}
			onMessage(msg)
		}
	}
}

// PollStatus sends GetStatus on interval until ctx is done, for a caller
// that wants a steady MCU heartbeat rather than relying solely on
// unsolicited frames.
func (l *Link) PollStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Send(proto.GetStatus{}); err != nil {
				l.logger.Warn("status poll failed", "err", err)
			}
		}
	}
}
