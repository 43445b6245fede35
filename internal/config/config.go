// Package config loads the host daemon's printer-description file: the
// only place kinematics kind, per-axis scaling, PID gains, and safety
// limits are read from disk. internal/motion, internal/stepper, and
// internal/safety never import this package directly — only the plain
// value types they already expose cross that boundary, so cmd/hostd and
// cmd/mcusim are where wiring happens from parsed YAML (SPEC_FULL.md §4.8).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KinematicsKind mirrors internal/kinematics.Kind in config's own
// vocabulary, so the YAML schema doesn't leak the internal package's
// iota-ordering as a wire/file format.
type KinematicsKind string

const (
	KinematicsCartesian KinematicsKind = "cartesian"
	KinematicsCoreXY    KinematicsKind = "corexy"
)

// AxisLimits bounds one axis's travel and motion parameters.
type AxisLimits struct {
	StepsPerMM float64 `yaml:"steps_per_mm"`
	MaxTravel  float64 `yaml:"max_travel_mm"`
	MaxAccel   float64 `yaml:"max_accel"`
	MaxJerk    float64 `yaml:"max_jerk"`
}

// HeaterConfig describes one PID-controlled heater and its safety limits.
type HeaterConfig struct {
	Name          string  `yaml:"name"`
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	OutputMax     float64 `yaml:"output_max"`
	MinTempC      float64 `yaml:"min_temp_c"`
	MaxTempC      float64 `yaml:"max_temp_c"`
	MaxRateCPerS  float64 `yaml:"max_rate_c_per_s"`
	ThermistorPin int     `yaml:"thermistor_pin"`
	HeaterPin     int     `yaml:"heater_pin"`
}

// ShaperConfig selects an input shaper for one axis.
type ShaperConfig struct {
	Kind    string  `yaml:"kind"` // "none", "zv", "zvd", "mzv", "ei"
	FreqHz  float64 `yaml:"freq_hz"`
	Damping float64 `yaml:"damping_ratio"`
}

// Printer is the complete, validated configuration for one printer.
type Printer struct {
	Kinematics KinematicsKind `yaml:"kinematics"`

	Axes map[string]AxisLimits `yaml:"axes"` // keys: "x","y","z","e", or "a","b","z" for CoreXY

	JunctionDeviationMM float64 `yaml:"junction_deviation_mm"`
	ClockHz             float64 `yaml:"clock_hz"`

	Heaters []HeaterConfig `yaml:"heaters"`

	Shapers map[string]ShaperConfig `yaml:"shapers"` // keyed by axis name

	StallDeadline  time.Duration `yaml:"stall_deadline"`
	WatchdogWindow time.Duration `yaml:"watchdog_window"`

	Serial struct {
		Device string `yaml:"device"`
		Baud   int    `yaml:"baud"`
	} `yaml:"serial"`
}

// Load reads and validates a Printer config from path.
func Load(path string) (*Printer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var p Printer
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the structural invariants Load can't express through
// YAML tags alone: a recognized kinematics kind, a positive clock, and
// internally-consistent axis sets.
func (p *Printer) Validate() error {
	switch p.Kinematics {
	case KinematicsCartesian:
		if _, ok := p.Axes["x"]; !ok {
			return fmt.Errorf("cartesian kinematics requires axes.x")
		}
	case KinematicsCoreXY:
		if _, ok := p.Axes["a"]; !ok {
			return fmt.Errorf("corexy kinematics requires axes.a")
		}
	default:
		return fmt.Errorf("unknown kinematics kind %q", p.Kinematics)
	}
	if p.ClockHz <= 0 {
		return fmt.Errorf("clock_hz must be positive")
	}
	if p.JunctionDeviationMM < 0 {
		return fmt.Errorf("junction_deviation_mm must be non-negative")
	}
	for _, h := range p.Heaters {
		if h.MaxTempC <= h.MinTempC {
			return fmt.Errorf("heater %q: max_temp_c must exceed min_temp_c", h.Name)
		}
	}
	return nil
}
