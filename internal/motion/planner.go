package motion

import (
	"math"

	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
)

const (
	// MaxLookahead is the number of pending moves held for junction-
	// deviation resolution before the oldest is forced into the
	// finalized, step-ready queue.
	MaxLookahead = 8
	// MaxFinalized is the depth of the step-ready queue awaiting
	// GenerateSteps.
	MaxFinalized = 64

	extruderAxisBit = 3
	// minVelocityFloor keeps 1/v from diverging to an unrepresentable
	// interval at the very start/end of a ramp, where the profile's
	// velocity is legitimately zero.
	minVelocityFloor = 1.0
)

// Planner turns absolute target positions into queued StepCommand values,
// resolving S-curve velocity profiles and corner speeds across a bounded
// lookahead window (SPEC_FULL.md §4.4).
type Planner struct {
	kin               kinematics.Kinematics
	junctionDeviation float64
	clockHz           float64

	position         [3]int32
	extruderPosition int32
	lastCartesian    kinematics.CartesianPoint
	prevEndV         float64

	lookahead []MoveSegment
	finalized []MoveSegment
	// emitted counts finalized[0]'s commands already enqueued by a
	// GenerateSteps call that stopped on a full queue.
	emitted int
}

// NewPlanner builds a Planner for the given kinematics, junction-deviation
// limit (mm), and step-timer frequency (ticks/s).
func NewPlanner(kin kinematics.Kinematics, junctionDeviation, clockHz float64) *Planner {
	return &Planner{
		kin:               kin,
		junctionDeviation: junctionDeviation,
		clockHz:           clockHz,
		lookahead:         make([]MoveSegment, 0, MaxLookahead),
		finalized:         make([]MoveSegment, 0, MaxFinalized),
	}
}

// PendingCount returns the total number of moves held across both the
// lookahead window and the finalized step-ready queue.
func (p *Planner) PendingCount() int {
	return len(p.lookahead) + len(p.finalized)
}

// PlanMove appends a new absolute-target move to the lookahead window,
// deriving its geometry immediately and its velocity profile once enough
// lookahead context exists (or on a later Finalize call).
//
// targetSteps and extruderTarget are absolute stepper-space positions;
// cartesianTarget is the corresponding absolute cartesian position, used
// only for the junction-deviation angle between consecutive moves.
func (p *Planner) PlanMove(targetSteps [3]int32, extruderTarget int32, cartesianTarget kinematics.CartesianPoint, cruiseV, accel, jerk float64) error {
	if !finite(cruiseV) || !finite(accel) || !finite(jerk) || accel <= 0 || jerk <= 0 || cruiseV < 0 {
		return ErrInvalidMove
	}

	delta := [3]int32{
		targetSteps[0] - p.position[0],
		targetSteps[1] - p.position[1],
		targetSteps[2] - p.position[2],
	}
	extruderDelta := extruderTarget - p.extruderPosition
	cartesianDelta := cartesianTarget.Sub(p.lastCartesian)
	distance := math.Sqrt(cartesianDelta.X*cartesianDelta.X + cartesianDelta.Y*cartesianDelta.Y + cartesianDelta.Z*cartesianDelta.Z)

	if distance < minResolvableDistanceMM && extruderDelta == 0 {
		return ErrInvalidMove
	}

	if p.PendingCount() >= MaxLookahead+MaxFinalized {
		return ErrQueueFull
	}

	var dirMask uint8
	var dominant uint32
	for axis, d := range delta {
		if d < 0 {
			// bit stays clear; positive direction is the default
		} else if d > 0 {
			dirMask |= 1 << uint(axis)
		}
		if abs32(d) > dominant {
			dominant = abs32(d)
		}
	}
	if extruderDelta > 0 {
		dirMask |= 1 << extruderAxisBit
	}

	stepperDistance := float64(dominant)
	if stepperDistance == 0 && extruderDelta != 0 {
		// Extruder-only move (retraction/prime): drive the profile off
		// the extruder's own step count instead of a zero dominant axis.
		stepperDistance = float64(abs32(extruderDelta))
		dominant = abs32(extruderDelta)
	}

	seg := MoveSegment{
		StepsDelta:        delta,
		ExtruderDelta:     extruderDelta,
		DirectionMask:     dirMask,
		DominantAxisSteps: dominant,
		CartesianDistance: distance,
		StepperDistance:   stepperDistance,
		Direction:         unitCartesian(cartesianDelta),
		CruiseV:           cruiseV,
		Accel:             accel,
		Jerk:              jerk,
	}

	p.lookahead = append(p.lookahead, seg)
	p.position = targetSteps
	p.extruderPosition = extruderTarget
	p.lastCartesian = cartesianTarget

	for len(p.lookahead) > MaxLookahead {
		p.advanceLookahead()
	}
	return nil
}

// Finalize resolves velocity profiles for every move still held in the
// lookahead window, e.g. at the end of a print or before a pause, where no
// further moves will arrive to inform the last few junction speeds.
func (p *Planner) Finalize() {
	for len(p.lookahead) > 0 {
		p.advanceLookahead()
	}
}

func (p *Planner) advanceLookahead() {
	head := p.lookahead[0]
	head.StartV = p.prevEndV

	endV := 0.0
	if len(p.lookahead) > 1 {
		next := p.lookahead[1]
		endV = junctionVelocity(cartesianVec(head.Direction), cartesianVec(next.Direction), head.Accel, next.Accel, head.CruiseV, next.CruiseV, p.junctionDeviation)
	}
	if endV > head.CruiseV {
		endV = head.CruiseV
	}
	head.EndV = endV

	head.Phases = DeriveProfile(SCurveParams{
		StartV:   head.StartV,
		CruiseV:  head.CruiseV,
		EndV:     head.EndV,
		Accel:    head.Accel,
		Jerk:     head.Jerk,
		Distance: head.StepperDistance,
	})

	p.prevEndV = head.EndV

	p.lookahead = p.lookahead[1:]
	p.finalized = append(p.finalized, head)
}

// GenerateSteps pops finalized moves and expands them into StepCommand
// values pushed onto q, stopping when q refuses a command (full) or the
// finalized queue drains. It returns the number of moves fully drained.
func (p *Planner) GenerateSteps(q *stepqueue.Queue) (movesDrained int) {
	for len(p.finalized) > 0 {
		seg := &p.finalized[0]
		if !p.expandSegment(seg, q) {
			return movesDrained
		}
		p.finalized = p.finalized[1:]
		movesDrained++
	}
	return movesDrained
}

// expandSegment runs the Bresenham step distribution across seg's
// dominant-axis step count, re-sampling the S-curve velocity at each step
// boundary to derive that step's timer interval (the same
// recompute-every-step approach real stepper firmware ISRs use, rather
// than inverting the profile analytically). It returns false if the queue
// fills mid-segment; the next call re-expands the segment and enqueues only
// the commands not yet queued.
func (p *Planner) expandSegment(seg *MoveSegment, q *stepqueue.Queue) bool {
	if seg.PressureAdvance != nil {
		seg.PressureAdvance.Reset()
	}
	n := seg.DominantAxisSteps
	if n == 0 {
		return true
	}

	var errAxis [3]int32
	var errExtruder int32
	t := 0.0

	velocityAt := func(tt float64) float64 {
		v, _ := EvaluateVelocity(seg.StartV, seg.Phases, seg.Jerk, tt)
		return v
	}

	commands := make([]stepqueue.StepCommand, 0, n)
	for i := uint32(0); i < n; i++ {
		v := velocityAt(t)
		if seg.Shaper != nil {
			v = seg.Shaper.Shape(t, velocityAt)
		}
		if v < minVelocityFloor {
			v = minVelocityFloor
		}
		intervalSeconds := 1.0 / v
		intervalTicks := clampTicks(intervalSeconds * p.clockHz)

		var mask uint8
		for axis := 0; axis < 3; axis++ {
			d := seg.StepsDelta[axis]
			if d == 0 {
				continue
			}
			errAxis[axis] += abs32(d)
			if 2*errAxis[axis] >= int32(n) {
				errAxis[axis] -= int32(n)
				mask |= 1 << uint(axis)
			}
		}
		if seg.ExtruderDelta != 0 {
			extruderRate := v * float64(abs32(seg.ExtruderDelta)) / float64(n)
			extra := seg.PressureAdvance.Sample(extruderRate, intervalSeconds)
			errExtruder += abs32(seg.ExtruderDelta) + extra
			if 2*errExtruder >= int32(n) {
				errExtruder -= int32(n)
				mask |= 1 << extruderAxisBit
			}
		}

		commands = append(commands, stepqueue.StepCommand{
			StepperMask:   mask,
			DirectionMask: seg.DirectionMask,
			IntervalTicks: intervalTicks,
		})
		t += intervalSeconds
	}

	// The expansion above is deterministic, so a retry reproduces the same
	// commands and resumes after the ones an earlier call already queued.
	for p.emitted < len(commands) {
		if !q.Enqueue(commands[p.emitted]) {
			return false
		}
		p.emitted++
	}
	p.emitted = 0
	return true
}

func clampTicks(v float64) uint16 {
	if v < 1 {
		return 1
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func unitCartesian(p kinematics.CartesianPoint) kinematics.CartesianPoint {
	n := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	if n < minResolvableDistanceMM {
		return kinematics.CartesianPoint{}
	}
	return kinematics.CartesianPoint{X: p.X / n, Y: p.Y / n, Z: p.Z / n}
}

func cartesianVec(p kinematics.CartesianPoint) [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}
