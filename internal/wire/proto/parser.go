package proto

import (
	"bytes"
	"encoding/binary"

	"github.com/tinyforge/tinyforge/internal/wire/crc"
)

// minFrameTail is the minimum value LEN can hold: one SEQ byte, one CMD_ID
// byte, and a 2-byte CRC, with zero payload bytes.
const minFrameTail = 4

// MaxFrameSize bounds the total on-wire frame length (sync + len byte +
// LEN bytes), matching the single-byte LEN field's range.
const MaxFrameSize = 2 + 255

// Parser is a zero-copy, non-allocating decoder for the Klipper-style wire
// frame described in SPEC_FULL.md §6. It is intended to be callable from an
// interrupt handler: Parse never allocates, never copies payload bytes (the
// returned Message's byte fields alias the input slice), and never panics
// on adversarial input.
//
// Per the open-question decision recorded in SPEC_FULL.md §8, this parser
// operates on raw, unescaped frames: LEN counts the literal bytes following
// it through the CRC, with no byte-stuffing layer. It is a separate format
// from the streaming host codec (Encoder/Decoder, see codec.go), which does
// byte-stuff per spec.md §4.3 — this zero-copy variant exists for a caller
// with no allocation budget to spend unstuffing a payload before reading
// it, at the cost of not being resilient to payload bytes that alias the
// sync/escape values.
type Parser struct {
	registry *CommandRegistry
}

// NewParser returns a parser that resolves command ids to names through the
// given registry. The registry must already be populated (normally via the
// identify handshake) before Parse is called.
func NewParser(registry *CommandRegistry) *Parser {
	return &Parser{registry: registry}
}

// Parse attempts to decode one message from the start of input.
//
//   - On success: msg is non-nil, consumed is the number of bytes of input
//     the frame occupied, and err is nil. The caller must advance its
//     buffer by consumed bytes.
//   - If input does not yet contain a complete frame: err is ErrIncomplete
//     (via errors.Is), msg is nil, and consumed is 0. The caller should
//     buffer more bytes and call Parse again with the same data.
//   - On any framing/CRC/payload error: err is a *ParseError carrying how
//     many bytes to discard before retrying. The caller must advance by
//     that amount (not by a parsed length) and call Parse again.
func (p *Parser) Parse(input []byte) (msg Message, seq byte, consumed int, err error) {
	syncPos := bytes.IndexByte(input, crc.Sync)
	if syncPos < 0 {
		return nil, 0, 0, &ParseError{Err: ErrInvalidSync, Discard: len(input)}
	}

	buf := input[syncPos:]
	if len(buf) < 2 {
		return nil, 0, 0, ErrIncomplete
	}

	lengthField := int(buf[1])
	if lengthField < minFrameTail {
		// A LEN this small can never hold SEQ+CMD_ID+CRC; this is not a
		// real frame start. Discard just the sync byte and let the caller
		// rescan from the next candidate.
		return nil, 0, 0, &ParseError{Err: ErrInvalidPayload, Discard: syncPos + 1}
	}

	frameLen := 2 + lengthField // sync byte + len byte + LEN bytes
	if len(buf) < frameLen {
		return nil, 0, 0, ErrIncomplete
	}

	tail := buf[2:frameLen] // SEQ | CMD_ID | payload | CRC(2)
	crcCovered := tail[:len(tail)-2]
	receivedCrc := binary.BigEndian.Uint16(tail[len(tail)-2:])
	calculatedCrc := crc.CCITT16(crcCovered)

	if receivedCrc != calculatedCrc {
		return nil, 0, 0, &ParseError{Err: ErrInvalidCrc, Discard: syncPos + 1}
	}

	seq = crcCovered[0]
	cmdID := crcCovered[1]
	payload := crcCovered[2:]

	name, known := p.registry.Name(cmdID)
	if !known {
		return Unknown{ID: cmdID, Payload: payload}, seq, syncPos + frameLen, nil
	}

	decoded, derr := decodePayload(name, cmdID, payload)
	if derr != nil {
		return nil, 0, 0, &ParseError{Err: derr, Discard: syncPos + 1}
	}

	return decoded, seq, syncPos + frameLen, nil
}
