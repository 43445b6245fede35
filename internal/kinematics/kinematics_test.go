package kinematics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartesianIndependentAxes(t *testing.T) {
	k := NewCartesian(80, 80, 400)
	pos := k.StepperPositions(CartesianPoint{X: 10, Y: 5, Z: 1})
	assert.Equal(t, [3]float64{800, 400, 400}, pos)
}

func TestCoreXYTransform(t *testing.T) {
	k := NewCoreXY(100, 400)
	pos := k.StepperPositions(CartesianPoint{X: 10, Y: 4, Z: 2})
	assert.InDeltaSlice(t, []float64{1400, 600, 800}, pos[:], 1e-9)
}

func TestStepperMoveDistanceMatchesPlainCartesianDistance(t *testing.T) {
	k := NewCartesian(1, 1, 1)
	d := k.StepperMoveDistance(CartesianPoint{}, CartesianPoint{X: 3, Y: 4})
	assert.InDelta(t, 5.0, d, 1e-9)
}
