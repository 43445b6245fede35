package glue

import (
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

// ToQueueStep packs one stepqueue.StepCommand as a single-count QueueStep.
// The host's runner loop never relies on Count/Add compression itself —
// that ramp-extrapolation is an MCU-side optimization the real firmware
// this stands in for would perform, not something the planner's already
// fully-resolved per-step intervals need on the wire.
func ToQueueStep(cmd stepqueue.StepCommand) proto.QueueStep {
	return proto.QueueStep{
		Interval:      uint32(cmd.IntervalTicks),
		Count:         1,
		Add:           0,
		StepperMask:   cmd.StepperMask,
		DirectionMask: cmd.DirectionMask,
	}
}

// ExpandQueueStep reverses ToQueueStep (and any future host-side
// compression that sets Count > 1): it reconstructs the run of
// StepCommand values a QueueStep describes, applying Add as a per-step
// signed adjustment to Interval the way a real stepper MCU's queue_step
// extrapolation does. Mask bits stay constant across the run, matching
// the real firmware's set_next_step_dir-then-queue_step pairing collapsed
// into one wire message here.
func ExpandQueueStep(msg proto.QueueStep) []stepqueue.StepCommand {
	if msg.Count == 0 {
		return nil
	}
	out := make([]stepqueue.StepCommand, msg.Count)
	interval := int64(msg.Interval)
	for i := range out {
		out[i] = stepqueue.StepCommand{
			StepperMask:   msg.StepperMask,
			DirectionMask: msg.DirectionMask,
			IntervalTicks: clampInterval(interval),
		}
		interval += int64(msg.Add)
	}
	return out
}

func clampInterval(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
