package motion

import "math"

// ShaperKind selects an input-shaping impulse train used to cancel
// resonant ringing at a known structural frequency (SPEC_FULL.md §4.4.5).
type ShaperKind int

const (
	ShaperNone ShaperKind = iota
	ShaperZV
	ShaperZVD
	ShaperMZV
	ShaperEI
)

// Impulse is one term of a shaper's convolution kernel: contribute
// Amplitude of the unshaped command, sampled TimeOffset seconds in the
// past.
type Impulse struct {
	TimeOffset float64
	Amplitude  float64
}

// InputShaper holds the impulse train derived from a resonant frequency
// and damping ratio. The shaper is applied by resampling the move's
// unshaped velocity profile at t-TimeOffset for each impulse and summing
// the weighted results (SPEC_FULL.md §8's "amplitude = duration-scaling"
// decision: rather than splitting an atomic step pulse, the shaper
// re-times the command signal the step generator samples from).
type InputShaper struct {
	Impulses []Impulse
	// Delay is the shaper's intrinsic latency: the time offset of its
	// last impulse, by which the shaped move's total duration is
	// extended relative to the unshaped profile.
	Delay float64
}

// NewInputShaper derives the impulse train for kind at the given resonant
// frequency (Hz) and damping ratio zeta (dimensionless, typically
// 0.0-0.3). freqHz must be > 0.
func NewInputShaper(kind ShaperKind, freqHz, zeta float64) *InputShaper {
	if kind == ShaperNone || freqHz <= 0 {
		return nil
	}
	if zeta < 0 {
		zeta = 0
	}
	if zeta >= 1 {
		zeta = 0.999
	}

	dampedPeriod := 1 / (freqHz * math.Sqrt(1-zeta*zeta))
	k := math.Exp(-zeta * math.Pi / math.Sqrt(1-zeta*zeta))

	var impulses []Impulse
	switch kind {
	case ShaperZV:
		denom := 1 + k
		impulses = []Impulse{
			{TimeOffset: 0, Amplitude: 1 / denom},
			{TimeOffset: dampedPeriod / 2, Amplitude: k / denom},
		}
	case ShaperZVD:
		denom := 1 + 2*k + k*k
		impulses = []Impulse{
			{TimeOffset: 0, Amplitude: 1 / denom},
			{TimeOffset: dampedPeriod / 2, Amplitude: 2 * k / denom},
			{TimeOffset: dampedPeriod, Amplitude: k * k / denom},
		}
	case ShaperMZV:
		// Pridgen/Singhose modified-ZV: trades a little more residual
		// vibration for roughly half the ZVD delay.
		denom := k*k + k + 1
		impulses = []Impulse{
			{TimeOffset: 0, Amplitude: (k*k + k) / denom},
			{TimeOffset: 0.375 * dampedPeriod, Amplitude: (1 - k) / denom},
			{TimeOffset: 0.75 * dampedPeriod, Amplitude: k / denom},
		}
	case ShaperEI:
		const tolerance = 0.05
		a1 := (1 + tolerance) / 4
		a3 := a1
		a2 := 1 - a1 - a3
		impulses = []Impulse{
			{TimeOffset: 0, Amplitude: a1},
			{TimeOffset: dampedPeriod / 2, Amplitude: a2},
			{TimeOffset: dampedPeriod, Amplitude: a3},
		}
	}

	return &InputShaper{Impulses: impulses, Delay: impulses[len(impulses)-1].TimeOffset}
}

// Shape samples velocity at the shaper's impulse offsets before t and
// returns their weighted sum. velocity is typically EvaluateVelocity bound
// to a specific move's profile.
func (s *InputShaper) Shape(t float64, velocity func(t float64) float64) float64 {
	if s == nil {
		return velocity(t)
	}
	var sum float64
	for _, imp := range s.Impulses {
		sum += imp.Amplitude * velocity(t-imp.TimeOffset)
	}
	return sum
}
