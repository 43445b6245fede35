package main

import (
	"sync"
	"time"
)

// RealtimeTimer is the wall-clock Timer implementation stepper.Generator
// drives inside cmd/mcusim: a real microcontroller's hardware compare-match
// timer has no Go equivalent, so this stands in for it the same way the
// rest of cmd/mcusim stands in for firmware (SPEC_FULL.md §2).
type RealtimeTimer struct {
	clockHz float64
	onFire  func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewRealtimeTimer returns a Timer that converts ScheduleInterrupt's tick
// count into wall-clock duration using clockHz and invokes onFire from its
// own goroutine when it elapses.
func NewRealtimeTimer(clockHz float64, onFire func()) *RealtimeTimer {
	return &RealtimeTimer{clockHz: clockHz, onFire: onFire}
}

func (t *RealtimeTimer) ScheduleInterrupt(ticks uint16) {
	d := time.Duration(float64(ticks) / t.clockHz * float64(time.Second))
	if d <= 0 {
		d = time.Nanosecond
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, t.onFire)
}

func (t *RealtimeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
