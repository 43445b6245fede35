package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
)

const testClockHz = 1_000_000

// TestStraightXMoveProducesExactlyNSteps covers the "straight 100-step X
// move" scenario: a pure X move of 100 steps at 1000 steps/s cruise should
// pulse the X bit on exactly 100 commands and no others.
func TestStraightXMoveProducesExactlyNSteps(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)

	err := p.PlanMove([3]int32{100, 0, 0}, 0, kinematics.CartesianPoint{X: 100}, 1000, 5000, 200000)
	require.NoError(t, err)
	p.Finalize()

	q := stepqueue.New(stepqueue.DefaultCapacity)
	drained := p.GenerateSteps(q)
	assert.Equal(t, 1, drained)

	xPulses := 0
	total := 0
	for {
		cmd, ok := q.Dequeue()
		if !ok {
			break
		}
		total++
		if cmd.StepperMask&0b0001 != 0 {
			xPulses++
		}
		assert.Equal(t, uint8(0), cmd.StepperMask&0b0110, "Y/Z must never pulse on a pure X move")
		assert.Greater(t, cmd.IntervalTicks, uint16(0))
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 100, xPulses)
}

// TestCornerWithLookaheadCarriesSpeedThroughStraightJunction covers the
// "corner with lookahead" scenario: two colinear moves should let the
// planner carry the first move's exit velocity at (approximately) its
// cruise speed into the second move, rather than decelerating to a stop.
func TestCornerWithLookaheadCarriesSpeedThroughStraightJunction(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)

	require.NoError(t, p.PlanMove([3]int32{1000, 0, 0}, 0, kinematics.CartesianPoint{X: 1000}, 2000, 20000, 2_000_000))
	require.NoError(t, p.PlanMove([3]int32{2000, 0, 0}, 0, kinematics.CartesianPoint{X: 2000}, 2000, 20000, 2_000_000))
	p.Finalize()

	require.Len(t, p.finalized, 2)
	firstExit := p.finalized[0].EndV
	assert.InDelta(t, 2000, firstExit, 1e-6, "colinear continuation should carry min(cruise_v) through the junction")

	secondEntry := p.finalized[1].StartV
	assert.Equal(t, firstExit, secondEntry)
}

// TestCornerReversalDecelsToStandstill is the degenerate counterpart: an
// exact direction reversal must bring the planner to a stop at the
// junction.
func TestCornerReversalDecelsToStandstill(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)

	require.NoError(t, p.PlanMove([3]int32{1000, 0, 0}, 0, kinematics.CartesianPoint{X: 1000}, 2000, 20000, 2_000_000))
	require.NoError(t, p.PlanMove([3]int32{0, 0, 0}, 0, kinematics.CartesianPoint{X: 0}, 2000, 20000, 2_000_000))
	p.Finalize()

	assert.InDelta(t, 0, p.finalized[0].EndV, 1e-6)
}

// TestInputShapingAtFortyHertzDelaysCommandWithoutDroppingSteps covers the
// "input shaping ZV at 40Hz" scenario: applying a ZV shaper must not change
// the total step count emitted, only their timing.
func TestInputShapingAtFortyHertzDelaysCommandWithoutDroppingSteps(t *testing.T) {
	unshaped := planSingleMove(t, nil)
	shaped := planSingleMove(t, NewInputShaper(ShaperZV, 40, 0.1))

	assert.Equal(t, countPulses(unshaped), countPulses(shaped), "shaping must not add or drop steps")

	var unshapedTicks, shapedTicks uint64
	for _, c := range unshaped {
		unshapedTicks += uint64(c.IntervalTicks)
	}
	for _, c := range shaped {
		shapedTicks += uint64(c.IntervalTicks)
	}
	assert.NotEqual(t, unshapedTicks, shapedTicks, "the shaped move's timing should differ from the unshaped one")
}

func planSingleMove(t *testing.T, shaper *InputShaper) []stepqueue.StepCommand {
	t.Helper()
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)
	require.NoError(t, p.PlanMove([3]int32{400, 0, 0}, 0, kinematics.CartesianPoint{X: 400}, 1000, 5000, 200000))
	p.Finalize()
	require.Len(t, p.finalized, 1)
	p.finalized[0].Shaper = shaper

	q := stepqueue.New(1024)
	require.Equal(t, 1, p.GenerateSteps(q))

	var out []stepqueue.StepCommand
	for {
		cmd, ok := q.Dequeue()
		if !ok {
			break
		}
		out = append(out, cmd)
	}
	return out
}

func countPulses(cmds []stepqueue.StepCommand) int {
	n := 0
	for _, c := range cmds {
		if c.StepperMask != 0 {
			n++
		}
	}
	return n
}

// TestQueueOverflowAt72PendingMoves covers the "queue overflow" scenario:
// the lookahead (8) and finalized (64) queues total 72 slots, so the 73rd
// plan_move call must fail while the first 72 succeed.
func TestQueueOverflowAt72PendingMoves(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)

	succeeded := 0
	for i := 1; i <= 100; i++ {
		x := int32(i * 10)
		err := p.PlanMove([3]int32{x, 0, 0}, 0, kinematics.CartesianPoint{X: float64(x)}, 500, 5000, 200000)
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrQueueFull)
	}
	assert.Equal(t, MaxLookahead+MaxFinalized, succeeded)
}

func TestPlanMoveRejectsZeroLengthMoveWithNoExtrusion(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)
	err := p.PlanMove([3]int32{0, 0, 0}, 0, kinematics.CartesianPoint{}, 1000, 5000, 200000)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestPlanMoveRejectsNonFiniteParameters(t *testing.T) {
	p := NewPlanner(kinematics.NewCartesian(1, 1, 1), 0.05, testClockHz)
	err := p.PlanMove([3]int32{10, 0, 0}, 0, kinematics.CartesianPoint{X: 10}, math.NaN(), 5000, 200000)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestDeriveProfileCoversExactDistance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		distance := rapid.Float64Range(10, 100000).Draw(rt, "distance")
		cruise := rapid.Float64Range(10, 5000).Draw(rt, "cruise")
		accel := rapid.Float64Range(100, 50000).Draw(rt, "accel")
		jerk := rapid.Float64Range(1000, 2_000_000).Draw(rt, "jerk")

		ph := DeriveProfile(SCurveParams{StartV: 0, CruiseV: cruise, EndV: 0, Accel: accel, Jerk: jerk, Distance: distance})

		total := ph.TJ1 + ph.TA + ph.TJ2 + ph.TC + ph.TJ3 + ph.TD + ph.TJ4
		require.Greater(rt, total, 0.0)

		// Numerically integrate velocity to confirm the profile covers
		// very close to `distance`, using a fine fixed step.
		const steps = 20000
		dt := total / steps
		covered := 0.0
		for i := 0; i < steps; i++ {
			v, _ := EvaluateVelocity(0, ph, jerk, float64(i)*dt)
			covered += v * dt
		}
		assert.InEpsilon(rt, distance, covered, 0.01)
	})
}

func TestDeriveProfileDegradesToTriangularWhenDistanceTooShort(t *testing.T) {
	ph := DeriveProfile(SCurveParams{StartV: 0, CruiseV: 10000, EndV: 0, Accel: 1000, Jerk: 50000, Distance: 1})
	assert.Equal(t, 0.0, ph.TC)
	assert.Less(t, ph.CruiseVelocity(), 10000.0)
}

func TestPressureAdvanceConservesFractionalSteps(t *testing.T) {
	pa := &PressureAdvance{Advance: 0.02, SmoothTime: 0.02}
	var total int32
	rate := 0.0
	for i := 0; i < 1000; i++ {
		rate += 5
		total += pa.Sample(rate, 0.001)
	}
	// Accelerating extrusion rate should pull steps forward (non-negative
	// net contribution) without runaway growth.
	assert.GreaterOrEqual(t, total, int32(0))
	// Emitted whole steps plus the carried remainder equal everything
	// accumulated: Advance times the net change in smoothed rate.
	assert.InDelta(t, pa.Advance*pa.lastRate, float64(total)+pa.residual, 1e-6)
}

func TestNewInputShaperImpulseAmplitudesSumToOne(t *testing.T) {
	for _, kind := range []ShaperKind{ShaperZV, ShaperZVD, ShaperMZV, ShaperEI} {
		s := NewInputShaper(kind, 40, 0.1)
		require.NotNil(t, s)
		sum := 0.0
		for _, imp := range s.Impulses {
			sum += imp.Amplitude
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}
