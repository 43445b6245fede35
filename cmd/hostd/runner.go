package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tinyforge/tinyforge/internal/glue"
	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/motion"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

// Runner binds one negotiated glue.Link to one motion.Planner and relays
// the planner's resolved StepCommand stream to the MCU as QueueStep
// frames. G-code-level ingestion is out of scope (spec.md Non-goals:
// "Unix-socket G-code ingestion") — SubmitMove is the seam an external
// frontend drives; Runner itself only owns the planner-to-wire leg.
type Runner struct {
	kin     kinematics.Kinematics
	planner *motion.Planner
	queue   *stepqueue.Queue
	link    *glue.Link
	logger  *log.Logger
}

// NewRunner builds a Runner over an already-negotiated link.
func NewRunner(kin kinematics.Kinematics, planner *motion.Planner, queue *stepqueue.Queue, link *glue.Link, logger *log.Logger) *Runner {
	return &Runner{kin: kin, planner: planner, queue: queue, link: link, logger: logger}
}

// SubmitMove converts a Cartesian target into stepper-space and plans it,
// immediately draining whatever the lookahead window resolves into the
// step queue.
func (r *Runner) SubmitMove(target kinematics.CartesianPoint, extruderTarget int32, cruiseV, accel, jerk float64) error {
	steppers := r.kin.StepperPositions(target)
	var targetSteps [3]int32
	for i, v := range steppers {
		targetSteps[i] = int32(v + signOf(v)*0.5) // round to nearest, matching the planner's integer step contract
	}
	if err := r.planner.PlanMove(targetSteps, extruderTarget, target, cruiseV, accel, jerk); err != nil {
		return fmt.Errorf("hostd: plan move: %w", err)
	}
	r.planner.GenerateSteps(r.queue)
	return nil
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// Finalize flushes any moves still held in the planner's lookahead window
// (e.g. at end of a print) and drains the resulting commands.
func (r *Runner) Finalize() {
	r.planner.Finalize()
	r.planner.GenerateSteps(r.queue)
}

// RelayStepQueue drains resolved StepCommands onto the wire as QueueStep
// frames until ctx is cancelled. It polls rather than blocking because
// stepqueue.Queue is a non-blocking SPSC ring, matching the same
// producer/consumer contract internal/stepper's Generator uses on the MCU
// side of this same queue type.
func (r *Runner) RelayStepQueue(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				cmd, ok := r.queue.Dequeue()
				if !ok {
					break
				}
				if err := r.link.Send(glue.ToQueueStep(cmd)); err != nil {
					if r.logger != nil {
						r.logger.Error("relay step command failed", "err", err)
					}
					return fmt.Errorf("hostd: relay step command: %w", err)
				}
			}
		}
	}
}

// handleInbound is the glue.Link.Run callback: it just logs anything
// other than a status heartbeat, which is the common case and not worth a
// log line per poll interval.
func handleInbound(logger *log.Logger) func(proto.Message) {
	return func(msg proto.Message) {
		if _, ok := msg.(proto.GetStatusResponse); ok {
			return
		}
		logger.Debug("received from MCU", "kind", msg.Kind())
	}
}
