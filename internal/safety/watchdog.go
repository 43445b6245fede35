package safety

import (
	"sync"
	"time"
)

// Watchdog is the consumed interface for a hardware independent watchdog
// timer (SPEC_FULL.md §6): unleashed once at startup, then fed periodically
// by a trusted task. If it is not fed within its window, the hardware
// resets the MCU; Go cannot express that reset directly, so the simulated
// watchdog below instead calls the onExpire callback its creator supplies.
type Watchdog interface {
	Unleash()
	Feed() error
}

// SimulatedWatchdog stands in for real hardware during host-side testing
// and the mcusim binary. It rejects a Feed that arrives less than half a
// window after the previous one, and fires onExpire if Feed is not called
// before the window elapses.
type SimulatedWatchdog struct {
	window   time.Duration
	onExpire func()

	mu          sync.Mutex
	unleashed   bool
	lastFeed    time.Time
	timer       *time.Timer
}

// NewSimulatedWatchdog returns a watchdog with the given window. onExpire
// is invoked (once) if the watchdog is not fed before the window elapses
// after Unleash or the previous Feed.
func NewSimulatedWatchdog(window time.Duration, onExpire func()) *SimulatedWatchdog {
	return &SimulatedWatchdog{window: window, onExpire: onExpire}
}

// Unleash arms the watchdog. It must be called exactly once.
func (w *SimulatedWatchdog) Unleash() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unleashed {
		return
	}
	w.unleashed = true
	w.lastFeed = time.Now()
	w.timer = time.AfterFunc(w.window, w.expire)
}

func (w *SimulatedWatchdog) expire() {
	if w.onExpire != nil {
		w.onExpire()
	}
}

// Feed resets the expiry window. It returns an error if called again
// within a fraction of the window since the last feed, which would mask a
// task that is checking in far more often than the watchdog was sized for
// and defeat its purpose as a stall detector.
func (w *SimulatedWatchdog) Feed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.unleashed {
		return errWatchdogNotUnleashed
	}
	now := time.Now()
	if !w.lastFeed.IsZero() && now.Sub(w.lastFeed) < w.window/2 {
		return errWatchdogFedTooOften
	}
	w.lastFeed = now
	w.timer.Reset(w.window)
	return nil
}

var (
	errWatchdogNotUnleashed = simpleError("safety: watchdog fed before being unleashed")
	errWatchdogFedTooOften  = simpleError("safety: watchdog fed more than once per window")
)

type simpleError string

func (e simpleError) Error() string { return string(e) }
