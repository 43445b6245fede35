package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedPortSetAndClearAtomic(t *testing.T) {
	p := NewSimulatedPort()
	require := assert.New(t)

	require.NoError(p.Write(0b0000))
	require.NoError(p.SetAndClearAtomic(0b0011, 0b0000))
	assert.Equal(t, uint32(0b0011), p.Read())

	require.NoError(p.SetAndClearAtomic(0b0100, 0b0001))
	assert.Equal(t, uint32(0b0110), p.Read())
}
