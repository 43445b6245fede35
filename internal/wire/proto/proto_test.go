package proto

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tinyforge/tinyforge/internal/wire/crc"
)

func testRegistry() *CommandRegistry {
	r := NewCommandRegistry()
	_ = r.Add(KindIdentify, 1)
	_ = r.Add(KindGetConfig, 2)
	_ = r.Add(KindGetStatus, 3)
	_ = r.Add(KindQueueStep, 0x10)
	_ = r.Add(KindSetDigitalOut, 0x21)
	_ = r.Add(KindSetPwmOut, 0x20)
	_ = r.Add(KindIdentifyResponse, 0x81)
	_ = r.Add(KindGetConfigResponse, 0x82)
	_ = r.Add(KindGetStatusResponse, 0x83)
	return r
}

// buildRawFrame hand-constructs a frame in Parser's raw, unstuffed format
// (SYNC, LEN, SEQ, CMD_ID, payload, CRC-16), independent of Encoder, so
// Parser's own zero-copy contract can be tested without assuming it speaks
// Encoder/Decoder's byte-stuffed streaming format (see codec.go).
func buildRawFrame(seq, cmdID byte, payload []byte) []byte {
	tail := make([]byte, 0, 2+len(payload)+2)
	tail = append(tail, seq, cmdID)
	tail = append(tail, payload...)
	sum := crc.CCITT16(tail)
	var crcBuf [2]byte
	binary.BigEndian.PutUint16(crcBuf[:], sum)
	tail = append(tail, crcBuf[:]...)

	frame := make([]byte, 0, 2+len(tail))
	frame = append(frame, crc.Sync, byte(len(tail)))
	frame = append(frame, tail...)
	return frame
}

func TestRegistryRejectsConflictingRemap(t *testing.T) {
	r := NewCommandRegistry()
	require.NoError(t, r.Add("get_config", 2))
	assert.Error(t, r.Add("get_config", 3))
	assert.Error(t, r.Add("get_status", 2))
}

func TestEncodeDecodeRoundTripEachMessageKind(t *testing.T) {
	registry := testRegistry()
	enc := NewEncoder(registry)
	dec := NewDecoder(registry)

	messages := []Message{
		Identify{},
		GetConfig{},
		GetStatus{},
		QueueStep{Interval: 1234, Count: 5, Add: -3, StepperMask: 0x05, DirectionMask: 0x01},
		SetDigitalOut{Pin: 7, Value: 1},
		SetPwmOut{Pin: 2, Value: 40000},
		IdentifyResponse{IsConfigValid: true, Version: []byte("1.2.3"), McuName: []byte("mcu-a")},
		GetConfigResponse{IsConfigValid: true, NumSteppers: 4, NumHeaters: 2},
		GetStatusResponse{ClockTicks: 99999, EmergencyStopped: false},
	}

	for _, m := range messages {
		encoded, err := enc.Encode(m, nil)
		require.NoError(t, err)

		dec.Feed(encoded)
		decoded, _, ok, err := dec.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, m, decoded)
		assert.Equal(t, 0, dec.Pending())
	}
}

func TestEmptyPayloadMessagesEncodeAsShortFrames(t *testing.T) {
	registry := testRegistry()
	enc := NewEncoder(registry)

	encoded, err := enc.Encode(GetConfig{}, nil)
	require.NoError(t, err)

	require.Len(t, encoded, 2+shortTailLen)
	assert.Equal(t, crc.Sync, encoded[0])
	assert.Equal(t, byte(shortTailLen), encoded[1])
	// The frame's final byte is a 1-byte CRC-8, not a 2-byte CRC-16.
	assert.Equal(t, crc.Atm8([]byte{encoded[2], encoded[3]}), encoded[4])
}

func TestParserIncompleteWaitsForMoreBytes(t *testing.T) {
	frame := buildRawFrame(0, 2, nil)
	parser := NewParser(testRegistry())

	_, _, _, err := parser.Parse(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrIncomplete)
}

// Scenario 4 from spec.md §8: build a valid frame, flip one payload byte,
// feed it to the parser, and confirm the exact (InvalidCrc, 1) / "next call
// returns Incomplete" sequence.
func TestParserCrcCorruptionScenario(t *testing.T) {
	frame := buildRawFrame(0, 2, nil)
	require.Greater(t, len(frame), 4)

	corrupted := append([]byte(nil), frame...)
	corrupted[2] ^= 0xFF // flip the SEQ byte, inside the CRC-covered span

	parser := NewParser(testRegistry())
	_, _, _, err := parser.Parse(corrupted)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe, ErrInvalidCrc)
	assert.Equal(t, 1, pe.Discard)

	remaining := corrupted[pe.Discard:]
	_, _, _, err = parser.Parse(remaining)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestUnknownCommandIDFallsThroughOnDecoder(t *testing.T) {
	// The registry knows the id->name mapping for "mystery", but
	// decodePayload has no typed case for it, so decoding must fall through
	// to the Unknown catch-all rather than erroring.
	registry := NewCommandRegistry()
	require.NoError(t, registry.Add("mystery", 0x55))

	enc := NewEncoder(registry)
	dec := NewDecoder(registry)

	frame, err := enc.Encode(rawKindMessage{kind: "mystery"}, nil)
	require.NoError(t, err)

	dec.Feed(frame)
	msg, _, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	unk, isUnknown := msg.(Unknown)
	require.True(t, isUnknown)
	assert.Equal(t, byte(0x55), unk.ID)
	assert.Equal(t, []byte{1, 2, 3}, unk.Payload)
}

type rawKindMessage struct{ kind string }

func (m rawKindMessage) Kind() string                  { return m.kind }
func (rawKindMessage) AppendPayload(dst []byte) []byte { return append(dst, 1, 2, 3) }

func TestDecoderDrainsMultipleFramesAcrossFeedCalls(t *testing.T) {
	registry := testRegistry()
	enc := NewEncoder(registry)
	dec := NewDecoder(registry)

	var stream []byte
	stream, _ = enc.Encode(GetConfig{}, stream)
	stream, _ = enc.Encode(GetStatus{}, stream)

	dec.Feed(stream[:3])
	_, _, ok, err := dec.Next()
	assert.False(t, ok)
	assert.NoError(t, err)

	dec.Feed(stream[3:])

	m1, _, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, GetConfig{}, m1)

	m2, _, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, GetStatus{}, m2)

	_, _, ok, err = dec.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestDecoderResyncsPastCorruptFrame(t *testing.T) {
	registry := testRegistry()
	enc := NewEncoder(registry)
	dec := NewDecoder(registry)

	var stream []byte
	stream, _ = enc.Encode(GetConfig{}, stream)
	corruptEnd := len(stream)
	stream, _ = enc.Encode(GetStatus{}, stream)

	stream[corruptEnd-3] ^= 0xFF // corrupt CRC-covered byte of the first frame

	dec.Feed(stream)

	_, _, ok, err := dec.Next() // resyncs past the corrupt frame internally
	assert.False(t, ok)
	assert.True(t, err != nil && errors.Is(err, ErrInvalidCrc))

	m, _, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, GetStatus{}, m)
}

func TestDecoderByteStuffsPayloadBytesEqualToReservedSyncOrEscape(t *testing.T) {
	// Unlike Parser's raw format, the streaming codec must byte-stuff
	// payload bytes that alias the sync/escape values (spec.md §4.3), and
	// round-trip them correctly through Decoder.
	rapid.Check(t, func(t *rapid.T) {
		registry := testRegistry()
		enc := NewEncoder(registry)
		dec := NewDecoder(registry)

		pin := rapid.SampledFrom([]byte{0x7E, 0x7D}).Draw(t, "pin")
		frame, err := enc.Encode(SetDigitalOut{Pin: pin, Value: pin}, nil)
		require.NoError(t, err)

		dec.Feed(frame)
		msg, _, ok, err := dec.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, SetDigitalOut{Pin: pin, Value: pin}, msg)
		assert.Equal(t, 0, dec.Pending())
	})
}
