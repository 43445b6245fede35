// Package motion implements the core motion planner: S-curve velocity
// profiling, lookahead junction-deviation cornering, Bresenham multi-axis
// step distribution, and the pressure-advance and input-shaping
// convolutions layered on top of it.
package motion

import (
	"errors"

	"github.com/tinyforge/tinyforge/internal/kinematics"
)

// ErrQueueFull is returned by PlanMove when the lookahead buffer cannot
// accept another segment. The caller must retry (after draining some
// segments via GenerateSteps) or wait.
var ErrQueueFull = errors.New("motion: lookahead queue full")

// ErrInvalidMove is returned by PlanMove for non-finite inputs, or when the
// cartesian distance is below the planner's minimum resolvable distance
// and there are no extruder steps — such a move is silently droppable, not
// a flow-control condition the caller must wait out.
var ErrInvalidMove = errors.New("motion: invalid move")

// minResolvableDistanceMM is the ~1e-6 mm threshold below which a
// zero-length cartesian move (with no extruder motion) is dropped rather
// than planned, per SPEC_FULL.md §4.4.6.
const minResolvableDistanceMM = 1e-6

// MoveSegment is the planner-internal description of one finalized move,
// ready for step expansion. Cartesian axes (X/Y/Z, or A/B/Z for CoreXY) are
// distinct from the extruder axis, which is tracked separately because it
// is excluded from both the dominant-axis computation and the Bresenham
// distribution pass (SPEC_FULL.md §3, §4.4.4).
type MoveSegment struct {
	// StepsDelta holds the signed per-axis step delta for the up to 3
	// kinematic-driven axes (SPEC_FULL.md §3's "target delta steps per
	// axis").
	StepsDelta [3]int32
	// ExtruderDelta is the signed extruder step delta for this move, not
	// counted toward DominantAxisSteps.
	ExtruderDelta int32
	// DirectionMask bit i (i<3) is the sign of StepsDelta[i]; bit 3 is the
	// sign of ExtruderDelta.
	DirectionMask uint8
	// DominantAxisSteps is max(|StepsDelta[i]|) over the cartesian axes
	// only.
	DominantAxisSteps uint32
	// CartesianDistance is the move's Euclidean length in cartesian
	// millimetres (extruder excluded).
	CartesianDistance float64
	// StepperDistance is the move's dominant-axis step count (the
	// extruder's step count for an extruder-only move); the S-curve
	// profile is derived over this distance, in steps.
	StepperDistance float64

	// Direction is the unit vector of this move's cartesian displacement,
	// used only for junction-deviation angle computation between
	// consecutive moves. Zero if CartesianDistance is ~0.
	Direction kinematics.CartesianPoint

	StartV, CruiseV, EndV float64 // steps/s, dominant-axis referenced
	Accel, Jerk           float64 // steps/s^2, steps/s^3

	Phases Phases

	PressureAdvance *PressureAdvance
	Shaper          *InputShaper
}

// TotalTime returns the sum of the move's seven phase durations.
func (m *MoveSegment) TotalTime() float64 {
	p := m.Phases
	return p.TJ1 + p.TA + p.TJ2 + p.TC + p.TJ3 + p.TD + p.TJ4
}
