package safety

import (
	"fmt"
	"time"
)

// ThermalMonitor tracks a single heater's temperature history and flags
// sensor-range and thermal-runaway violations. A ThermalMonitor is owned
// exclusively by the task that drives that heater's PID loop (see
// SPEC_FULL.md §9's "interior mutability of peripherals" note) — it is not
// safe for concurrent use by more than one caller.
type ThermalMonitor struct {
	maxRateCPerSec float64
	minTemp        float64
	maxTemp        float64

	lastTemp  float64
	lastCheck time.Time
	started   bool
}

// NewThermalMonitor returns a monitor for one heater. maxRateCPerSec bounds
// how fast the temperature may legitimately rise; minTemp/maxTemp bound the
// plausible sensor range.
func NewThermalMonitor(maxRateCPerSec, minTemp, maxTemp float64) *ThermalMonitor {
	return &ThermalMonitor{
		maxRateCPerSec: maxRateCPerSec,
		minTemp:        minTemp,
		maxTemp:        maxTemp,
	}
}

// runawayCheckPeriod is the minimum elapsed time before a rate-of-change is
// evaluated; shorter intervals produce noisy, meaningless rates.
const runawayCheckPeriod = 100 * time.Millisecond

// Check validates current against the sensor range and, once a prior
// sample exists, the runaway rate. The very first call for a given monitor
// never evaluates the rate rule — there is no previous sample to compare
// against (SPEC_FULL.md §6, supplemented from original_source).
func (m *ThermalMonitor) Check(heaterID int, now time.Time, current float64) error {
	if current < m.minTemp {
		return &Violation{Kind: TempTooLow, HeaterID: heaterID, Temp: current}
	}
	if current > m.maxTemp {
		return &Violation{Kind: TempTooHigh, HeaterID: heaterID, Temp: current}
	}

	if m.started {
		elapsed := now.Sub(m.lastCheck)
		if elapsed > runawayCheckPeriod {
			rate := (current - m.lastTemp) / elapsed.Seconds()
			if rate > m.maxRateCPerSec {
				m.lastTemp = current
				m.lastCheck = now
				return &Violation{Kind: ThermalRunaway, HeaterID: heaterID, Rate: rate}
			}
		}
	}

	m.lastTemp = current
	m.lastCheck = now
	m.started = true
	return nil
}

// Kind enumerates the categories of safety violation the supervisor can
// raise. Every kind escalates unconditionally to emergency stop.
type Kind int

const (
	TempTooLow Kind = iota
	TempTooHigh
	ThermalRunaway
	StepperDriverFault
	TaskStalled
)

func (k Kind) String() string {
	switch k {
	case TempTooLow:
		return "temp_too_low"
	case TempTooHigh:
		return "temp_too_high"
	case ThermalRunaway:
		return "thermal_runaway"
	case StepperDriverFault:
		return "stepper_driver_fault"
	case TaskStalled:
		return "task_stalled"
	default:
		return "unknown"
	}
}

// Violation is the single error type for every safety-taxonomy condition
// in SPEC_FULL.md §7. Fields not relevant to Kind are left zero.
type Violation struct {
	Kind      Kind
	HeaterID  int
	Temp      float64
	Rate      float64
	TaskID    int
	FaultMask uint8
}

func (v *Violation) Error() string {
	switch v.Kind {
	case TempTooLow:
		return fmt.Sprintf("heater %d: temperature %.1f below minimum limit", v.HeaterID, v.Temp)
	case TempTooHigh:
		return fmt.Sprintf("heater %d: temperature %.1f above maximum limit", v.HeaterID, v.Temp)
	case ThermalRunaway:
		return fmt.Sprintf("heater %d: thermal runaway, rate %.2f C/s", v.HeaterID, v.Rate)
	case StepperDriverFault:
		return fmt.Sprintf("stepper driver fault, mask 0x%02x", v.FaultMask)
	case TaskStalled:
		return fmt.Sprintf("task %d stalled (missed check-in deadline)", v.TaskID)
	default:
		return "unknown safety violation"
	}
}
