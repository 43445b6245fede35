package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyforge/tinyforge/internal/gpio"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
)

func TestPositionTrackingMatchesPlannedDelta(t *testing.T) {
	q := stepqueue.New(16)
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 100}))
	}
	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0010, DirectionMask: 0b0000, IntervalTicks: 100}))
	}

	port := gpio.NewSimulatedPort()
	timer := &SimulatedTimer{}
	g := New(q, port, timer)

	require.NoError(t, g.Start())
	for g.Running() {
		g.OnInterrupt()
	}

	assert.Equal(t, int32(10), g.Position(0))
	assert.Equal(t, int32(-4), g.Position(1))
}

func TestEmptyQueueStopsTimerWithinOneInterrupt(t *testing.T) {
	q := stepqueue.New(16)
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 500}))

	port := gpio.NewSimulatedPort()
	timer := &SimulatedTimer{}
	g := New(q, port, timer)

	require.NoError(t, g.Start())
	assert.True(t, timer.Scheduled)

	g.OnInterrupt() // pulses the only command, finds no pending, stops
	assert.False(t, timer.Scheduled)
	assert.Equal(t, 1, timer.StopCount)
	assert.False(t, g.Running())
}

func TestStartupPrimesBelowMinimumIntervalToFloor(t *testing.T) {
	q := stepqueue.New(16)
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 5}))

	port := gpio.NewSimulatedPort()
	timer := &SimulatedTimer{}
	g := New(q, port, timer)

	require.NoError(t, g.Start())
	assert.Equal(t, uint16(startupMinTicks), timer.LastTicks)
}

func TestStartOnEmptyQueueReturnsError(t *testing.T) {
	q := stepqueue.New(16)
	g := New(q, gpio.NewSimulatedPort(), &SimulatedTimer{})
	assert.ErrorIs(t, g.Start(), ErrQueueEmpty)
}

func TestOnInterruptReschedulesWithJustExecutedCommandsInterval(t *testing.T) {
	q := stepqueue.New(16)
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 500}))
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 300}))
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0001, IntervalTicks: 200}))

	port := gpio.NewSimulatedPort()
	timer := &SimulatedTimer{}
	g := New(q, port, timer)

	require.NoError(t, g.Start())
	// Start schedules the first pulse using command 1's own interval
	// (500, above the startup floor).
	require.Equal(t, []uint16{500}, timer.ScheduleLog)

	g.OnInterrupt() // emits command 1, must reschedule using command 1's interval (500), not command 2's (300)
	assert.Equal(t, []uint16{500, 500}, timer.ScheduleLog)

	g.OnInterrupt() // emits command 2, must reschedule using command 2's interval (300), not command 3's (200)
	assert.Equal(t, []uint16{500, 500, 300}, timer.ScheduleLog)
}

func TestDirectionBitsPersistAcrossNonPulsingSteppers(t *testing.T) {
	q := stepqueue.New(16)
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0001, DirectionMask: 0b0011, IntervalTicks: 100}))
	require.True(t, q.Enqueue(stepqueue.StepCommand{StepperMask: 0b0010, DirectionMask: 0b0011, IntervalTicks: 100}))

	port := gpio.NewSimulatedPort()
	timer := &SimulatedTimer{}
	g := New(q, port, timer)
	require.NoError(t, g.Start())
	for g.Running() {
		g.OnInterrupt()
	}

	// Both axes moved in their positive direction (direction mask bit set
	// for both), regardless of which one pulsed on a given interrupt.
	assert.Equal(t, int32(1), g.Position(0))
	assert.Equal(t, int32(1), g.Position(1))
}
