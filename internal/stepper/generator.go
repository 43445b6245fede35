// Package stepper implements the real-time step generator: the pipelined,
// interrupt-driven consumer that turns queued StepCommand values into
// actual step/direction pin transitions with minimal jitter between the
// timer firing and the pulse going out (SPEC_FULL.md §4.5).
package stepper

import (
	"errors"

	"github.com/tinyforge/tinyforge/internal/gpio"
	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
)

// ErrQueueEmpty is returned by Start when the step queue has nothing
// queued yet.
var ErrQueueEmpty = errors.New("stepper: queue empty at start")

// startupMinTicks is the floor applied to the very first scheduled
// interval: a freshly primed queue's first command may carry an interval
// computed for steady-state motion, too short to safely arm the timer
// from a cold start (SPEC_FULL.md §4.5.1).
const startupMinTicks = 100

// directionBitShift packs a StepCommand's direction bits into the upper
// byte of the value written to Port, with the step-pulse bits in the
// lower byte, so one SetAndClearAtomic call both strobes the step lines
// and (re)asserts the direction level in a single indivisible write.
const directionBitShift = 8

// Generator is the pipelined step consumer: one stepqueue.Queue feeds it,
// one gpio.Port receives its pulses, one Timer schedules its wakeups. It
// holds exactly one command "staged" (the one the next interrupt will
// pulse) and one "pending" (already dequeued one step ahead, hiding the
// queue's dequeue latency behind the timer's already-armed deadline).
type Generator struct {
	queue *stepqueue.Queue
	port  gpio.Port
	timer Timer

	position [kinematics.MaxAxes]int32

	staged     stepqueue.StepCommand
	pending    stepqueue.StepCommand
	hasPending bool
	running    bool
}

// New returns a Generator that has not yet been started.
func New(queue *stepqueue.Queue, port gpio.Port, timer Timer) *Generator {
	return &Generator{queue: queue, port: port, timer: timer}
}

// Running reports whether the timer is currently armed.
func (g *Generator) Running() bool { return g.running }

// Position returns the current absolute step position for axis, per
// SPEC_FULL.md's per-axis position-tracking invariant.
func (g *Generator) Position(axis int) int32 {
	if axis < 0 || axis >= len(g.position) {
		return 0
	}
	return g.position[axis]
}

// Start primes the pipeline: it dequeues the first command (and the one
// after it, for the pipeline's lookahead slot) and arms the timer.
func (g *Generator) Start() error {
	first, ok := g.queue.Dequeue()
	if !ok {
		return ErrQueueEmpty
	}
	interval := first.IntervalTicks
	if interval < startupMinTicks {
		interval = startupMinTicks
	}

	g.staged = first
	g.pending, g.hasPending = g.queue.Dequeue()
	g.running = true
	g.timer.ScheduleInterrupt(interval)
	return nil
}

// OnInterrupt is the ISR body: pulse the staged command, immediately
// reschedule using that same just-executed command's interval_ticks (the
// interval from this pulse to the next, per its own velocity sample — not
// the pending command's interval, which belongs to the pulse after that),
// promote pending to staged, then dequeue the next command to refill the
// pipeline. Emitting the pulse and rescheduling both happen before the
// dequeue, so a slow queue read never adds to the jitter between the
// timer firing and the pulse going out.
func (g *Generator) OnInterrupt() {
	if !g.running {
		return
	}
	justExecutedInterval := g.staged.IntervalTicks
	g.emit(g.staged)

	if !g.hasPending {
		g.timer.Stop()
		g.running = false
		return
	}

	g.timer.ScheduleInterrupt(justExecutedInterval)
	g.staged = g.pending
	g.pending, g.hasPending = g.queue.Dequeue()
}

func (g *Generator) emit(cmd stepqueue.StepCommand) {
	setBits := uint32(cmd.DirectionMask)<<directionBitShift | uint32(cmd.StepperMask)
	clearBits := (^setBits) & 0xFFFF
	_ = g.port.SetAndClearAtomic(setBits, clearBits)

	for axis := 0; axis < len(g.position); axis++ {
		bit := uint8(1) << uint(axis)
		if cmd.StepperMask&bit == 0 {
			continue
		}
		if cmd.DirectionMask&bit != 0 {
			g.position[axis]++
		} else {
			g.position[axis]--
		}
	}
}
