package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinyforge/tinyforge/internal/glue"
	"github.com/tinyforge/tinyforge/internal/kinematics"
	"github.com/tinyforge/tinyforge/internal/motion"
	"github.com/tinyforge/tinyforge/internal/safety"
	"github.com/tinyforge/tinyforge/internal/stepqueue"
	"github.com/tinyforge/tinyforge/internal/wire/proto"
)

type noopWatchdog struct{}

func (noopWatchdog) Unleash()    {}
func (noopWatchdog) Feed() error { return nil }

func TestSubmitMoveAndRelayStepQueueDeliverQueueStepFrames(t *testing.T) {
	hostConn, mcuConn := net.Pipe()
	defer hostConn.Close()
	defer mcuConn.Close()

	registry := glue.DefaultRegistry()
	mon := safety.NewMonitor(nil, nil, noopWatchdog{})
	link := glue.New(hostConn, registry, mon, nil)

	kin := kinematics.NewCartesian(80, 80, 400)
	planner := motion.NewPlanner(kin, 0.05, 1_000_000)
	queue := stepqueue.New(stepqueue.DefaultCapacity)
	runner := NewRunner(kin, planner, queue, link, nil)

	require.NoError(t, runner.SubmitMove(kinematics.CartesianPoint{X: 10}, 0, 50, 2000, 100000))
	runner.Finalize()
	require.Greater(t, queue.Len(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.RelayStepQueue(ctx, time.Millisecond) }()

	dec := proto.NewDecoder(registry)
	buf := make([]byte, 256)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = mcuConn.SetReadDeadline(deadline)
		n, err := mcuConn.Read(buf)
		require.NoError(t, err)
		dec.Feed(buf[:n])
		msg, _, ok, err := dec.Next()
		require.NoError(t, err)
		if !ok {
			continue
		}
		step, isStep := msg.(proto.QueueStep)
		require.True(t, isStep)
		require.Equal(t, byte(0x01), step.StepperMask)
		return
	}
}
