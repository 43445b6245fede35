package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCCITT16StandardVector(t *testing.T) {
	// Standard CRC-16-CCITT test vector.
	assert.Equal(t, uint16(0x29B1), CCITT16([]byte("123456789")))
}

func TestStuffEscapesSyncAndEscapeBytes(t *testing.T) {
	in := []byte{Sync, 0x01, Escape, 0x02}
	out := Stuff(in, nil)
	assert.Equal(t, []byte{Escape, Sync ^ XORMask, 0x01, Escape, Escape ^ XORMask, 0x02}, out)
}

func TestUnstuffDanglingEscape(t *testing.T) {
	_, err := Unstuff([]byte{0x01, Escape}, nil)
	assert.ErrorIs(t, err, ErrDanglingEscape)
}

func TestStuffUnstuffRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		stuffed := Stuff(payload, nil)
		unstuffed, err := Unstuff(stuffed, nil)
		assert.NoError(t, err)
		assert.Equal(t, payload, unstuffed)
	})
}

func TestStuffNeverProducesBareSyncOrEscape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		stuffed := Stuff(payload, nil)
		for i := 0; i < len(stuffed); i++ {
			if stuffed[i] == Escape {
				i++ // the byte following an escape is exempt
				continue
			}
			assert.NotEqual(t, Sync, stuffed[i])
		}
	})
}
