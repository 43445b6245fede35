// Package pid implements the heater control loop: a PID controller with
// integral clamping and derivative-on-measurement, wired to the safety
// supervisor so an active emergency stop always wins over the control
// loop's own output (SPEC_FULL.md §4.7).
package pid

import (
	"time"

	"github.com/tinyforge/tinyforge/internal/fixedpoint"
	"github.com/tinyforge/tinyforge/internal/safety"
)

// Controller is a single heater's PID loop. Gains and every accumulator
// Update touches are fixedpoint.Q16_16, not float64: SPEC_FULL.md places this
// loop on the MCU side, realized here by cmd/mcusim, the same no-FPU world
// the stepper ISR runs in — it gets the same deterministic, trap-free
// arithmetic fixedpoint exists for.
type Controller struct {
	Kp, Ki, Kd fixedpoint.Q16_16
	OutputMax  fixedpoint.Q16_16 // duty ceiling, e.g. 1.0 for 100%

	monitor  *safety.Monitor
	heaterID int

	integral     fixedpoint.Q16_16
	integralMax  fixedpoint.Q16_16
	lastMeasured fixedpoint.Q16_16
	havePrior    bool
}

// New returns a Controller for heaterID, consulting monitor on every Update
// so a latched emergency stop forces the output to zero regardless of
// gains or setpoint. Gains arrive as float64 (config is YAML-sourced) and
// are converted once, here, to the Q16_16 values the controller actually
// computes with.
func New(kp, ki, kd, outputMax float64, heaterID int, monitor *safety.Monitor) *Controller {
	c := &Controller{
		Kp: fixedpoint.FromFloat(kp), Ki: fixedpoint.FromFloat(ki), Kd: fixedpoint.FromFloat(kd),
		OutputMax: fixedpoint.FromFloat(outputMax),
		monitor:   monitor,
		heaterID:  heaterID,
	}
	if ki > 0 {
		c.integralMax = c.OutputMax.Div(c.Ki)
	}
	return c
}

// Update runs one control step given the current setpoint, measured
// temperature, and elapsed time since the previous Update, returning a
// duty cycle in [0, OutputMax]. setpoint, measured and dt arrive as float64
// (cmd/mcusim's simulated thermal plant has no reason to carry fixed-point
// through its own model) and are converted to Q16_16 once, here, for the
// controller's own arithmetic.
//
// Update first feeds measured to the safety supervisor's thermal check for
// this heater; a sensor-range or runaway violation latches the emergency
// stop there, and either that or a stop already latched by something else
// forces the output to 0 here. The integral term is reset whenever the
// stop is active so a later reset-and-resume doesn't inherit windup from
// before the stop.
func (c *Controller) Update(now time.Time, setpoint, measured, dt float64) float64 {
	if c.monitor != nil {
		_ = c.monitor.CheckThermal(c.heaterID, now, measured)
		if c.monitor.IsEmergencyStopActive() {
			c.integral = 0
			c.havePrior = false
			return 0
		}
	}
	if dt <= 0 {
		dt = 1e-6
	}

	sp := fixedpoint.FromFloat(setpoint)
	pv := fixedpoint.FromFloat(measured)
	dtq := fixedpoint.FromFloat(dt)

	errQ := sp.Sub(pv)

	c.integral = c.integral.Add(errQ.Mul(dtq))
	if c.integralMax > 0 {
		if c.integral > c.integralMax {
			c.integral = c.integralMax
		} else if c.integral < c.integralMax.Neg() {
			c.integral = c.integralMax.Neg()
		}
	}

	var derivative fixedpoint.Q16_16
	if c.havePrior {
		// Derivative-on-measurement: differentiate the process variable,
		// not the error, so a setpoint step doesn't inject a derivative
		// kick.
		derivative = pv.Sub(c.lastMeasured).Div(dtq).Neg()
	}
	c.lastMeasured = pv
	c.havePrior = true

	out := c.Kp.Mul(errQ).Add(c.Ki.Mul(c.integral)).Add(c.Kd.Mul(derivative))
	if out < 0 {
		out = 0
	}
	if out > c.OutputMax {
		out = c.OutputMax
	}
	return out.Float()
}

// Reset clears the controller's integral and derivative history, e.g.
// after a heater fault is cleared or a print is restarted.
func (c *Controller) Reset() {
	c.integral = 0
	c.havePrior = false
}
