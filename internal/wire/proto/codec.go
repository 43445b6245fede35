package proto

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/tinyforge/tinyforge/internal/wire/crc"
)

// shortTailLen is the LEN value of a short frame: SEQ, CMD_ID, and a single
// CRC-8 byte, no payload at all. spec.md §4.2 calls for the 8-bit CRC "for
// the codec's short frames" — the identify/status/ack-style messages that
// never carry a payload are exactly that case, and skipping both the
// 16-bit CRC and the (here, no-op) stuffing step for them is real savings
// on every poll-interval heartbeat.
const shortTailLen = 3

// Encoder serializes typed Messages into framed wire bytes for the host's
// async streaming transport (spec.md §4.3's "host-side codec"), distinct
// from Parser's zero-copy, deliberately unstuffed frame format (SPEC_FULL.md
// §8's sync-byte decision covers that one). A message with no payload is
// written as a short frame (LEN==shortTailLen, SEQ+CMD_ID protected by an
// 8-bit CRC, no stuffing needed since there's nothing to stuff); any other
// message computes a 16-bit CRC over the unstuffed SEQ+CMD_ID+payload, then
// byte-stuffs the payload before writing it, per spec.md's "compute CRC,
// byte-stuff payload, write framed bytes."
type Encoder struct {
	registry *CommandRegistry
	seq      byte
}

// NewEncoder returns an Encoder that looks up command ids through registry.
func NewEncoder(registry *CommandRegistry) *Encoder {
	return &Encoder{registry: registry}
}

// Encode serializes msg into a complete frame, appending it to dst and
// returning the extended slice. Each call advances and consumes the next
// sequence number.
func (e *Encoder) Encode(msg Message, dst []byte) ([]byte, error) {
	id, ok := e.registry.ID(msg.Kind())
	if !ok {
		return dst, errors.New("proto: no negotiated id for command " + msg.Kind())
	}

	var payload []byte
	payload = msg.AppendPayload(payload)

	seq := e.seq
	e.seq++

	if len(payload) == 0 {
		sum := crc.Atm8([]byte{seq, id})
		dst = append(dst, crc.Sync, shortTailLen, seq, id, sum)
		return dst, nil
	}

	unstuffedTail := make([]byte, 0, 2+len(payload))
	unstuffedTail = append(unstuffedTail, seq, id)
	unstuffedTail = append(unstuffedTail, payload...)
	sum := crc.CCITT16(unstuffedTail)

	stuffedPayload := crc.Stuff(payload, nil)

	tailLen := 2 + len(stuffedPayload) + 2 // seq + cmd_id + stuffed payload + crc16
	if tailLen > 255 {
		return dst, ErrBufferTooSmall
	}

	dst = append(dst, crc.Sync, byte(tailLen), seq, id)
	dst = append(dst, stuffedPayload...)
	var crcBuf [2]byte
	binary.BigEndian.PutUint16(crcBuf[:], sum)
	dst = append(dst, crcBuf[:]...)

	return dst, nil
}

// Decoder is a buffered, streaming counterpart to Encoder for host-side
// async transports: bytes arrive incrementally via Feed, and complete
// messages are drained one at a time via Next. It unwinds exactly what
// Encoder produces — short frames verified by Atm8, long frames unstuffed
// and verified by CRC-16 — rather than delegating to Parser, which speaks
// a different, unstuffed format.
type Decoder struct {
	registry *CommandRegistry
	buf      []byte
}

// NewDecoder returns a Decoder that resolves command ids through registry.
func NewDecoder(registry *CommandRegistry) *Decoder {
	return &Decoder{registry: registry}
}

// Feed appends newly-arrived bytes to the decode buffer.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next drains and returns the next complete message from the buffer, if
// any. A recoverable framing/CRC/payload error is resolved internally (the
// offending bytes are discarded) and returned alongside ok=false so the
// caller can log it; a subsequent Next call resumes scanning where this one
// left off. ok is false with a nil error when the buffer simply doesn't
// hold a complete frame yet.
func (d *Decoder) Next() (msg Message, seq byte, ok bool, err error) {
	for {
		syncPos := bytes.IndexByte(d.buf, crc.Sync)
		if syncPos < 0 {
			d.buf = nil
			return nil, 0, false, nil
		}
		if syncPos > 0 {
			d.buf = d.buf[syncPos:]
		}
		if len(d.buf) < 2 {
			return nil, 0, false, nil
		}

		lengthField := int(d.buf[1])
		frameLen := 2 + lengthField
		if len(d.buf) < frameLen {
			return nil, 0, false, nil
		}

		if lengthField == shortTailLen {
			m, s, derr := d.decodeShortFrame(d.buf[2:frameLen])
			d.buf = d.buf[frameLen:]
			if derr != nil {
				return nil, 0, false, derr
			}
			return m, s, true, nil
		}

		if lengthField >= minFrameTail+1 {
			m, s, derr := d.decodeLongFrame(d.buf[2:frameLen])
			d.buf = d.buf[frameLen:]
			if derr != nil {
				return nil, 0, false, derr
			}
			return m, s, true, nil
		}

		// Neither a valid short frame nor a long frame can have this LEN
		// value; the sync byte is a false positive. Discard it; the next
		// call rescans from the following byte.
		d.buf = d.buf[1:]
		return nil, 0, false, ErrInvalidPayload
	}
}

func (d *Decoder) decodeShortFrame(tail []byte) (Message, byte, error) {
	seq, id, sum := tail[0], tail[1], tail[2]
	if crc.Atm8([]byte{seq, id}) != sum {
		return nil, 0, ErrInvalidCrc
	}
	return d.decodeBody(seq, id, nil)
}

func (d *Decoder) decodeLongFrame(tail []byte) (Message, byte, error) {
	seq, id := tail[0], tail[1]
	stuffedPayload := tail[2 : len(tail)-2]
	receivedCrc := binary.BigEndian.Uint16(tail[len(tail)-2:])

	payload, uerr := crc.Unstuff(stuffedPayload, nil)
	if uerr != nil {
		return nil, 0, uerr
	}

	unstuffedTail := make([]byte, 0, 2+len(payload))
	unstuffedTail = append(unstuffedTail, seq, id)
	unstuffedTail = append(unstuffedTail, payload...)
	if crc.CCITT16(unstuffedTail) != receivedCrc {
		return nil, 0, ErrInvalidCrc
	}
	return d.decodeBody(seq, id, payload)
}

func (d *Decoder) decodeBody(seq, id byte, payload []byte) (Message, byte, error) {
	name, known := d.registry.Name(id)
	if !known {
		return Unknown{ID: id, Payload: payload}, seq, nil
	}
	decoded, derr := decodePayload(name, id, payload)
	if derr != nil {
		return nil, 0, derr
	}
	return decoded, seq, nil
}

// Pending reports how many undrained bytes are currently buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
