package motion

// PressureAdvance accumulates the extra (or withheld) extruder steps
// needed to compensate for nozzle pressure lag: each sample adds
// `Advance * d(rate)/dt * dt` steps, where rate is the extruder rate
// low-pass filtered over SmoothTime, so the filament is pushed slightly
// ahead of the naive linear schedule during acceleration and pulled back
// during deceleration (SPEC_FULL.md §4.4).
//
// Advance and SmoothTime are both zero-value usable (an advance of 0
// disables compensation entirely, matching SPEC_FULL.md's "pressure
// advance is optional per move" requirement).
type PressureAdvance struct {
	Advance    float64 // seconds; mm of extra filament per mm/s of extruder velocity
	SmoothTime float64 // seconds; lowpass window for the velocity derivative feeding Advance

	residual float64 // fractional steps carried to the next sample, never emitted alone
	lastRate float64 // previous sample's smoothed extruder rate, for the derivative
}

// Sample advances the compensator by dt seconds given the nominal (planned)
// extruder velocity extruderRate (steps/s) at this instant, and returns the
// number of *additional* whole steps to emit this tick beyond the nominal
// Bresenham-scheduled extruder steps. The fractional remainder is carried
// forward so the compensator never loses or duplicates steps over a move.
func (pa *PressureAdvance) Sample(extruderRate, dt float64) int32 {
	if pa == nil || pa.Advance == 0 {
		return 0
	}
	smoothed := extruderRate
	if pa.SmoothTime > 0 {
		alpha := dt / (pa.SmoothTime + dt)
		smoothed = pa.lastRate + alpha*(extruderRate-pa.lastRate)
	}
	accel := (smoothed - pa.lastRate) / maxFloat(dt, 1e-9)
	pa.lastRate = smoothed

	extra := pa.Advance * accel * dt
	pa.residual += extra
	whole := int32(pa.residual)
	pa.residual -= float64(whole)
	return whole
}

// Reset clears accumulated state, e.g. between non-adjacent extrusion
// moves (a travel move in between breaks the derivative continuity).
func (pa *PressureAdvance) Reset() {
	if pa == nil {
		return
	}
	pa.residual = 0
	pa.lastRate = 0
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
