// Package kinematics implements the Cartesian-to-stepper-space transforms
// consumed by the motion planner. Per SPEC_FULL.md's Non-goals, only
// Cartesian and CoreXY are supported; there is no general kinematics
// framework.
package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
)

// MaxAxes bounds the fixed-size stepper position arrays used throughout the
// planner and stepper packages, matching StepCommand's 8-bit stepper mask.
const MaxAxes = 8

// CartesianPoint is a real-valued position in millimetres. It is a plain
// value with no identity, freely copied.
type CartesianPoint struct {
	X, Y, Z float64
}

// Vector returns p as an r3.Vector for use with github.com/golang/geo's dot
// product and norm helpers.
func (p CartesianPoint) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Sub returns p-other as a CartesianPoint.
func (p CartesianPoint) Sub(other CartesianPoint) CartesianPoint {
	return CartesianPoint{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// StepperAxis identifies a physical stepper motor.
type StepperAxis int

const (
	AxisX StepperAxis = iota
	AxisY
	AxisZ
	AxisA // CoreXY A stepper
	AxisB // CoreXY B stepper
)

// Kind tags which kinematic model a Kinematics value implements, so the
// planner's hot path can switch on a plain value instead of going through
// an interface's vtable (SPEC_FULL.md §9: "dynamic dispatch over
// kinematics... use a sum type... the hot path reads kinematic parameters,
// not virtual function tables").
type Kind int

const (
	KindCartesian Kind = iota
	KindCoreXY
)

// Kinematics translates Cartesian millimetre positions into stepper-space
// positions (in steps). Implementations are selected once at configuration
// load time and never change for the life of a printer session.
type Kinematics struct {
	Kind Kind

	// StepsPerMM holds one entry per driven stepper, in the order
	// StepperPositions returns them. For Cartesian kinematics, X/Y/Z map
	// directly. For CoreXY, index 0 and 1 hold the A/B belt steps/mm and
	// index 2 holds Z's.
	StepsPerMM [3]float64
}

// NewCartesian returns a Cartesian kinematics model with independent
// steps/mm for X, Y, Z.
func NewCartesian(stepsPerMMX, stepsPerMMY, stepsPerMMZ float64) Kinematics {
	return Kinematics{Kind: KindCartesian, StepsPerMM: [3]float64{stepsPerMMX, stepsPerMMY, stepsPerMMZ}}
}

// NewCoreXY returns a CoreXY kinematics model. stepsPerMMBelt applies to
// both the A and B steppers, matching a symmetric CoreXY build; stepsPerMMZ
// is independent.
func NewCoreXY(stepsPerMMBelt, stepsPerMMZ float64) Kinematics {
	return Kinematics{Kind: KindCoreXY, StepsPerMM: [3]float64{stepsPerMMBelt, stepsPerMMBelt, stepsPerMMZ}}
}

// StepperPositions returns the stepper-space position (in steps, as a real
// number before rounding) for each of the up to 3 driven axes, for the
// given Cartesian point.
func (k Kinematics) StepperPositions(p CartesianPoint) [3]float64 {
	switch k.Kind {
	case KindCoreXY:
		return [3]float64{
			(p.X + p.Y) * k.StepsPerMM[0],
			(p.X - p.Y) * k.StepsPerMM[1],
			p.Z * k.StepsPerMM[2],
		}
	default: // KindCartesian
		return [3]float64{
			p.X * k.StepsPerMM[0],
			p.Y * k.StepsPerMM[1],
			p.Z * k.StepsPerMM[2],
		}
	}
}

// StepperMoveDistance returns the Euclidean length, in steps, of the move
// from `from` to `to` in stepper space.
func (k Kinematics) StepperMoveDistance(from, to CartesianPoint) float64 {
	start := k.StepperPositions(from)
	end := k.StepperPositions(to)
	var sumSq float64
	for i := range start {
		d := end[i] - start[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
