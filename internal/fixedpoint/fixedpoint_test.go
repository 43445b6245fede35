package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFromFloatRoundTrip(t *testing.T) {
	got := FromFloat(3.5).Float()
	assert.InDelta(t, 3.5, got, 1e-4)
}

func TestMulIdentity(t *testing.T) {
	a := FromFloat(2.25)
	assert.Equal(t, a, a.Mul(one))
}

func TestDivByZeroSaturates(t *testing.T) {
	assert.Equal(t, Max, FromFloat(1).Div(0))
	assert.Equal(t, Min, FromFloat(-1).Div(0))
}

func TestAddSaturatesInsteadOfWrapping(t *testing.T) {
	assert.Equal(t, Max, Max.Add(one))
	assert.Equal(t, Min, Min.Sub(one))
}

func TestMulDivRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FromFloat(rapid.Float64Range(-1000, 1000).Draw(t, "a"))
		b := FromFloat(rapid.Float64Range(1, 1000).Draw(t, "b"))

		product := a.Mul(b)
		back := product.Div(b)

		// Integer division in Q16.16 loses at most a handful of ULPs; allow
		// a loose tolerance rather than asserting bit-exact round trip.
		assert.InDelta(t, a.Float(), back.Float(), 0.01)
	})
}

func TestAddCommutativeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FromFloat(rapid.Float64Range(-1e6, 1e6).Draw(t, "a"))
		b := FromFloat(rapid.Float64Range(-1e6, 1e6).Draw(t, "b"))
		assert.Equal(t, a.Add(b), b.Add(a))
	})
}
