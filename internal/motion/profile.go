package motion

import "math"

// Phases holds the durations, in seconds, of a move's seven jerk-limited
// segments: increasing acceleration, constant acceleration, decreasing
// acceleration, constant cruise, increasing deceleration, constant
// deceleration, decreasing deceleration (SPEC_FULL.md §4.4.2).
type Phases struct {
	TJ1, TA, TJ2, TC, TJ3, TD, TJ4 float64
	// Peak accel magnitude reached during the acceleration ramp and the
	// deceleration ramp respectively; stored so EvaluateVelocity doesn't
	// need to re-derive them.
	accelPeak, decelPeak float64
	// cruiseV is the move's actual cruise velocity, which may be lower
	// than requested if the move is too short to reach it (the
	// "triangular" profile case).
	cruiseV float64
}

// SCurveParams are the inputs to DeriveProfile.
type SCurveParams struct {
	StartV, CruiseV, EndV float64 // steps/s, all >= 0
	Accel                  float64 // steps/s^2, > 0
	Jerk                   float64 // steps/s^3, > 0
	Distance               float64 // steps, >= 0
}

// DeriveProfile computes the seven-phase jerk-limited velocity profile
// covering exactly p.Distance steps, starting at p.StartV and ending at
// p.EndV, without exceeding p.CruiseV, p.Accel, or p.Jerk.
//
// If the requested cruise velocity cannot be reached within p.Distance,
// the profile degrades to "triangular" (TC == 0) with a reduced peak
// velocity, per SPEC_FULL.md §4.4.2's acceleration/deceleration distance
// check.
func DeriveProfile(p SCurveParams) Phases {
	accelDist := (p.CruiseV*p.CruiseV - p.StartV*p.StartV) / (2 * p.Accel)
	decelDist := (p.CruiseV*p.CruiseV - p.EndV*p.EndV) / (2 * p.Accel)

	cruiseV := p.CruiseV
	var tc float64
	if accelDist+decelDist > p.Distance {
		cruiseV = math.Sqrt(math.Max(0, (2*p.Accel*p.Distance+p.StartV*p.StartV+p.EndV*p.EndV)/2))
		if cruiseV < p.StartV {
			cruiseV = p.StartV
		}
		if cruiseV < p.EndV {
			cruiseV = p.EndV
		}
		tc = 0
	} else {
		if cruiseV > 0 {
			tc = (p.Distance - accelDist - decelDist) / cruiseV
		}
	}

	accelRamp := rampPhases(p.StartV, cruiseV, p.Accel, p.Jerk)
	decelRamp := rampPhases(p.EndV, cruiseV, p.Accel, p.Jerk)

	return Phases{
		TJ1: accelRamp.tj, TA: accelRamp.tConst, TJ2: accelRamp.tj,
		TC: tc,
		TJ3: decelRamp.tj, TD: decelRamp.tConst, TJ4: decelRamp.tj,
		accelPeak: accelRamp.peak,
		decelPeak: decelRamp.peak,
		cruiseV:   cruiseV,
	}
}

type ramp struct {
	tj, tConst, peak float64
}

// rampPhases derives the symmetric jerk-limited ramp between lowV and
// highV (highV >= lowV): a jerk-up segment, a constant-accel segment, and
// a jerk-down segment of equal duration to the jerk-up segment.
func rampPhases(lowV, highV, accel, jerk float64) ramp {
	dv := highV - lowV
	if dv <= 0 {
		return ramp{}
	}
	rampTime := dv / accel
	tj := math.Min(rampTime/2, accel/jerk)
	tConst := rampTime - 2*tj
	if tConst < 0 {
		tConst = 0
	}
	return ramp{tj: tj, tConst: tConst, peak: jerk * tj}
}

// EvaluateVelocity returns the move's instantaneous velocity (steps/s) and
// acceleration (steps/s^2) at elapsed time t since the move began, clamped
// to [0, TotalTime()].
func EvaluateVelocity(startV float64, ph Phases, jerk float64, t float64) (v, a float64) {
	total := ph.TJ1 + ph.TA + ph.TJ2 + ph.TC + ph.TJ3 + ph.TD + ph.TJ4
	if t < 0 {
		t = 0
	}
	if t > total {
		t = total
	}

	// Phase 1: increasing accel.
	if t <= ph.TJ1 {
		return startV + 0.5*jerk*t*t, jerk * t
	}
	t -= ph.TJ1
	vAfter1 := startV + 0.5*jerk*ph.TJ1*ph.TJ1
	a1 := jerk * ph.TJ1

	// Phase 2: constant accel.
	if t <= ph.TA {
		return vAfter1 + a1*t, a1
	}
	t -= ph.TA
	vAfter2 := vAfter1 + a1*ph.TA

	// Phase 3: decreasing accel back to 0.
	if t <= ph.TJ2 {
		return vAfter2 + a1*t - 0.5*jerk*t*t, a1 - jerk*t
	}
	t -= ph.TJ2
	cruiseV := ph.cruiseV

	// Phase 4: cruise.
	if t <= ph.TC {
		return cruiseV, 0
	}
	t -= ph.TC

	// Phase 5: increasing decel magnitude.
	if t <= ph.TJ3 {
		return cruiseV - 0.5*jerk*t*t, -jerk * t
	}
	t -= ph.TJ3
	a2 := jerk * ph.TJ3
	vAfter5 := cruiseV - 0.5*jerk*ph.TJ3*ph.TJ3

	// Phase 6: constant decel.
	if t <= ph.TD {
		return vAfter5 - a2*t, -a2
	}
	t -= ph.TD
	vAfter6 := vAfter5 - a2*ph.TD

	// Phase 7: decreasing decel magnitude back to 0.
	return vAfter6 - a2*t + 0.5*jerk*t*t, -a2 + jerk*t
}

// CruiseVelocity returns the profile's actual (possibly reduced) cruise
// velocity.
func (p Phases) CruiseVelocity() float64 { return p.cruiseV }
