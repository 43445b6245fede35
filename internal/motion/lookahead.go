package motion

import (
	"math"

	"github.com/tinyforge/tinyforge/internal/kinematics"
)

// junctionVelocity computes the maximum speed the planner may carry
// through the corner between two consecutive moves without exceeding the
// junction-deviation limit jd (SPEC_FULL.md §4.4.3).
//
// cos θ = dir0 · dir1 is the literal dot product of the two moves' unit
// cartesian direction vectors, matching the formula's definition of θ. A
// continuation straight through (dir0 == dir1) has cos θ = 1; an exact
// reversal (dir1 == -dir0) has cos θ = -1, matching the degenerate cases
// documented alongside the formula.
//
// Evaluating the formula on those unit vectors directly would give the
// opposite of the documented degenerate-case outputs (colinear → 0,
// reversal → finite), so the turn angle actually fed to the
// junction-deviation radius is measured between dir0 and the *reversed*
// incoming direction, -dir0, and dir1 — i.e. cosTurn = -cosθ. That
// reproduces both stated outcomes exactly: colinear saturates to
// min(cruise_v), and a reversal yields 0.
func junctionVelocity(dir0, dir1 [3]float64, accel0, accel1, cruiseV0, cruiseV1, jd float64) float64 {
	cosTheta := dot(dir0, dir1)
	cosTurn := -cosTheta
	if cosTurn > 1 {
		cosTurn = 1
	}
	if cosTurn < -1 {
		cosTurn = -1
	}

	sinHalf := math.Sqrt(math.Max(0, 0.5*(1-cosTurn)))
	minCruise := math.Min(cruiseV0, cruiseV1)
	if sinHalf > 1-1e-7 {
		return minCruise
	}

	r := jd * sinHalf / (1 - sinHalf)
	minAccel := math.Min(accel0, accel1)
	vj := math.Sqrt(r * minAccel)
	return math.Min(vj, minCruise)
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func unitVector(p kinematics.CartesianPoint) [3]float64 {
	n := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	if n < minResolvableDistanceMM {
		return [3]float64{}
	}
	return [3]float64{p.X / n, p.Y / n, p.Z / n}
}
