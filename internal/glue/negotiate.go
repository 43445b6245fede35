package glue

import (
	"context"
	"fmt"
	"time"

	"github.com/tinyforge/tinyforge/internal/transport"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

// bootstrapOrder is the canonical command name ordering both the host and
// an MCU running cmd/mcusim assign ids from. A real firmware variant would
// instead report its own ordering in IdentifyResponse and the host would
// rebuild its registry to match, which is why negotiation is its own step
// rather than a hardcoded registry everywhere — this is the seam future
// firmware variants hook into.
var bootstrapOrder = []string{
	proto.KindIdentify,
	proto.KindGetConfig,
	proto.KindGetStatus,
	proto.KindQueueStep,
	proto.KindSetDigitalOut,
	proto.KindSetPwmOut,
	proto.KindIdentifyResponse,
	proto.KindGetConfigResponse,
	proto.KindGetStatusResponse,
	proto.KindSetDigitalOutAck,
	proto.KindSetPwmOutAck,
}

// DefaultRegistry returns the command/id mapping cmd/hostd and cmd/mcusim
// both build from until a firmware variant's IdentifyResponse says
// otherwise.
func DefaultRegistry() *proto.CommandRegistry {
	r := proto.NewCommandRegistry()
	for i, name := range bootstrapOrder {
		if err := r.Add(name, byte(i)); err != nil {
			panic(fmt.Sprintf("glue: bootstrap registry conflict for %q: %v", name, err))
		}
	}
	return r
}

// identifyTimeout bounds how long NegotiateCommands waits for the MCU's
// IdentifyResponse before giving up.
const identifyTimeout = 2 * time.Second

// NegotiateCommands sends Identify over stream using the bootstrap
// registry and confirms the MCU answers before handing back the registry
// the rest of the session should use.
func NegotiateCommands(ctx context.Context, stream transport.Stream) (*proto.CommandRegistry, error) {
	registry := DefaultRegistry()
	enc := proto.NewEncoder(registry)
	dec := proto.NewDecoder(registry)

	var buf [proto.MaxFrameSize]byte
	frame, err := enc.Encode(proto.Identify{}, buf[:0])
	if err != nil {
		return nil, fmt.Errorf("glue: encode identify: %w", err)
	}
	if _, err := stream.Write(frame); err != nil {
		return nil, fmt.Errorf("glue: write identify: %w", err)
	}

	deadline, cancel := context.WithTimeout(ctx, identifyTimeout)
	defer cancel()

	readBuf := make([]byte, readBufSize)
	for {
		if deadline.Err() != nil {
			return nil, fmt.Errorf("glue: identify handshake timed out: %w", deadline.Err())
		}
		n, err := stream.Read(readBuf)
		if err != nil {
			return nil, fmt.Errorf("glue: read during identify: %w", err)
		}
		dec.Feed(readBuf[:n])
		msg, _, ok, err := dec.Next()
		if err != nil {
			continue // malformed frame, keep waiting within the deadline
		}
		if !ok {
			continue
		}
		if resp, isIdentify := msg.(proto.IdentifyResponse); isIdentify {
			if !resp.IsConfigValid {
				return nil, fmt.Errorf("glue: MCU reports invalid config")
			}
			return registry, nil
		}
	}
}
