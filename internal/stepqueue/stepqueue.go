// Package stepqueue implements the bounded, lock-free single-producer/
// single-consumer ring buffer that carries StepCommand values from the
// step expander (the planner's consumer-facing side) to the step generator
// ("the ISR core"). Neither side ever yields ownership: the planner holds
// the only Producer, the stepper core holds the only Consumer, for the
// life of the program (SPEC_FULL.md §3).
package stepqueue

import "sync/atomic"

// StepCommand is the smallest unit the step generator executes: pulse
// these motors (stepper_mask), in these directions (direction_mask), then
// wait interval_ticks timer ticks before the next command. It is a plain,
// small, by-value struct — Go's equivalent of a Copy type — so passing it
// through the queue never allocates.
//
// Invariant: StepperMask != 0, or the command is a pure delay (no pulse,
// just a wait). IntervalTicks > 0, except when it means "fire again
// immediately" (IntervalTicks == 0 is reserved for that case and must
// never be produced by the planner's normal step expansion — see
// SPEC_FULL.md §4.4.4's saturation rule for v≈0).
type StepCommand struct {
	StepperMask   uint8
	DirectionMask uint8
	IntervalTicks uint16
}

// DefaultCapacity is the minimum ring size required by SPEC_FULL.md §4.5.2.
const DefaultCapacity = 256

// Queue is a bounded SPSC ring buffer of StepCommand. Capacity is fixed at
// construction and rounded up to the next power of two so indexing can use
// a bitmask instead of a modulo. The zero value is not usable; use New.
type Queue struct {
	buf  []StepCommand
	mask uint32

	// head is advanced only by the consumer; tail only by the producer.
	// Using atomics for both (rather than a mutex) gives the acquire-
	// release ordering SPEC_FULL.md §4.5.2 requires between an enqueue and
	// the dequeue that observes it, without either side ever blocking.
	head atomic.Uint32
	tail atomic.Uint32
}

// New returns a Queue with at least the given capacity (rounded up to a
// power of two). Panics if capacity <= 0, since a zero-capacity SPSC queue
// cannot ever deliver a command and indicates a construction bug, not a
// runtime condition to recover from.
func New(capacity int) *Queue {
	if capacity <= 0 {
		panic("stepqueue: capacity must be positive")
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Queue{
		buf:  make([]StepCommand, size),
		mask: uint32(size - 1),
	}
}

// Enqueue attempts to push cmd onto the queue. It returns false without
// blocking if the queue is full. Only the single producer goroutine may
// call Enqueue.
func (q *Queue) Enqueue(cmd StepCommand) bool {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head >= uint32(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = cmd
	q.tail.Store(tail + 1)
	return true
}

// Dequeue attempts to pop the oldest command. It returns (zero, false)
// without blocking if the queue is empty. Only the single consumer
// goroutine may call Dequeue.
func (q *Queue) Dequeue() (StepCommand, bool) {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return StepCommand{}, false
	}
	cmd := q.buf[head&q.mask]
	q.head.Store(head + 1)
	return cmd, true
}

// Len returns an approximate occupied-slot count, safe to call from either
// side for diagnostics but not for correctness decisions (the other side's
// counter may have moved by the time the caller acts on it).
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}
