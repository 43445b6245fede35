package main

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/tinyforge/tinyforge/internal/glue"
	"github.com/tinyforge/tinyforge/internal/gpio"
	"github.com/tinyforge/tinyforge/internal/safety"
	"github.com/tinyforge/tinyforge/internal/stepper"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

// Session answers the host's wire protocol over one glue.Link, playing the
// role of firmware: it owns the step queue's single consumer (the
// Generator), the GPIO port, the safety supervisor, and every heater's PID
// loop (SPEC_FULL.md §2's "Go realization of MCU vs host").
type Session struct {
	link    *glue.Link
	queue   *stepqueue.Queue
	gen     *stepper.Generator
	port    gpio.Port
	monitor *safety.Monitor
	heaters []*Heater
	logger  *log.Logger
}

// NewSession wires a Session over an already-negotiated link.
func NewSession(link *glue.Link, queue *stepqueue.Queue, gen *stepper.Generator, port gpio.Port, monitor *safety.Monitor, heaters []*Heater, logger *log.Logger) *Session {
	return &Session{link: link, queue: queue, gen: gen, port: port, monitor: monitor, heaters: heaters, logger: logger}
}

// HandleMessage is the glue.Link.Run callback: it answers each command the
// host sends with whatever the wire protocol's command/response pairing
// requires.
func (s *Session) HandleMessage(msg proto.Message) {
	switch m := msg.(type) {
	case proto.Identify:
		s.sendErr(proto.IdentifyResponse{IsConfigValid: true, Version: []byte("tinyforge-mcusim-1"), McuName: []byte("mcusim")})
	case proto.GetConfig:
		s.sendErr(proto.GetConfigResponse{IsConfigValid: true, NumSteppers: 3, NumHeaters: byte(len(s.heaters))})
	case proto.GetStatus:
		s.sendErr(proto.GetStatusResponse{
			ClockTicks:       uint32(time.Now().UnixNano() / int64(time.Microsecond)),
			EmergencyStopped: s.monitor.IsEmergencyStopActive(),
		})
	case proto.QueueStep:
		s.enqueueSteps(m)
	case proto.SetDigitalOut:
		s.setDigitalOut(m)
	case proto.SetPwmOut:
		s.setPwmOut(m)
	default:
		s.logger.Debug("unhandled message from host", "kind", msg.Kind())
	}
}

func (s *Session) enqueueSteps(m proto.QueueStep) {
	if s.monitor.IsEmergencyStopActive() {
		s.logger.Warn("dropping queue_step: emergency stop active")
		return
	}
	for _, cmd := range glue.ExpandQueueStep(m) {
		if !s.queue.Enqueue(cmd) {
			s.logger.Warn("step queue full, dropping remaining run")
			break
		}
	}
	if !s.gen.Running() {
		if err := s.gen.Start(); err != nil {
			s.logger.Debug("generator start deferred", "err", err)
		}
	}
}

func (s *Session) setDigitalOut(m proto.SetDigitalOut) {
	bit := uint32(1) << uint(m.Pin)
	if m.Value != 0 {
		_ = s.port.SetAndClearAtomic(bit, 0)
	} else {
		_ = s.port.SetAndClearAtomic(0, bit)
	}
	s.sendErr(proto.SetDigitalOutAck{})
}

func (s *Session) setPwmOut(m proto.SetPwmOut) {
	if int(m.Pin) < len(s.heaters) {
		s.heaters[m.Pin].SetSetpoint(pwmToSetpoint(m.Value, s.heaters[m.Pin].cfg.MaxTempC))
	}
	s.sendErr(proto.SetPwmOutAck{})
}

// pwmToSetpoint maps a 16-bit PWM duty request onto a target temperature
// within the heater's configured range, so SetPwmOut doubles as "set
// target temperature as a fraction of max" for calibration/testing without
// a dedicated message kind.
func pwmToSetpoint(value uint16, maxTempC float64) float64 {
	return maxTempC * float64(value) / 65535.0
}

func (s *Session) sendErr(msg proto.Message) {
	if err := s.link.Send(msg); err != nil {
		s.logger.Warn("send failed", "kind", msg.Kind(), "err", err)
	}
}
