package stepper

// Timer is the hardware step timer the generator drives. Real firmware
// implements this over a free-running counter's compare-match interrupt;
// tests use SimulatedTimer, which records scheduled deadlines instead of
// actually waiting on them, and cmd/mcusim uses a wall-clock stand-in
// (RealtimeTimer).
type Timer interface {
	// ScheduleInterrupt arms the timer to fire again after ticks counts of
	// its clock, measured from now (not from the last deadline), matching
	// a compare-match register write.
	ScheduleInterrupt(ticks uint16)
	// Stop disarms the timer. Called when the step queue drains so the
	// generator doesn't fire spuriously with nothing queued.
	Stop()
}

// SimulatedTimer is a Timer double for tests: it just
// records the most recent schedule/stop call, with no wall-clock behavior
// of its own. The caller drives time forward by invoking
// Generator.OnInterrupt directly.
type SimulatedTimer struct {
	Scheduled   bool
	LastTicks   uint16
	ScheduleLog []uint16
	StopCount   int
}

func (t *SimulatedTimer) ScheduleInterrupt(ticks uint16) {
	t.Scheduled = true
	t.LastTicks = ticks
	t.ScheduleLog = append(t.ScheduleLog, ticks)
}

func (t *SimulatedTimer) Stop() {
	t.Scheduled = false
	t.StopCount++
}
