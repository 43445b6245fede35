package main

import (
	"time"

	"github.com/tinyforge/tinyforge/internal/config"
	"github.com/tinyforge/tinyforge/internal/gpio"
	"github.com/tinyforge/tinyforge/internal/pid"
)

// ambientC and the plant-model gain/loss constants below are the values of
// the trivial plant used by internal/pid's own convergence test: duty heats
// linearly, ambient loss cools proportionally to the gap from ambient. Step
// scales the heating term by dt, which that test's per-step update does
// not. cmd/mcusim has no real thermistor to read, so it simulates one
// instead.
const (
	ambientC          = 20.0
	plantGainCPerSec  = 2.0
	plantLossPerKelvin = 0.01
)

// Heater binds one config.HeaterConfig's PID controller to a simulated
// thermal plant and a PWM-capable gpio.Port pin.
type Heater struct {
	cfg        config.HeaterConfig
	controller *pid.Controller
	port       gpio.Port
	temp       float64
	setpoint   float64
}

// NewHeater builds a Heater starting at ambient temperature.
func NewHeater(cfg config.HeaterConfig, controller *pid.Controller, port gpio.Port) *Heater {
	return &Heater{cfg: cfg, controller: controller, port: port, temp: ambientC}
}

// Step advances the simulated plant by dt seconds and drives the heater
// pin with the controller's resulting duty, returning the new temperature.
func (h *Heater) Step(now time.Time, dt float64) float64 {
	duty := h.controller.Update(now, h.setpoint, h.temp, dt)
	h.temp += duty*plantGainCPerSec*dt - (h.temp-ambientC)*plantLossPerKelvin
	pin := uint32(1) << uint(h.cfg.HeaterPin)
	if duty > 0 {
		_ = h.port.SetAndClearAtomic(pin, 0)
	} else {
		_ = h.port.SetAndClearAtomic(0, pin)
	}
	return h.temp
}

// SetSetpoint updates the heater's target temperature.
func (h *Heater) SetSetpoint(c float64) { h.setpoint = c }
