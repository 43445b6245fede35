package transport

import (
	"context"
	"time"
)

// Dialer opens a fresh Stream to the MCU, e.g. OpenSerial bound to a
// fixed device/baud pair.
type Dialer func() (Stream, error)

// Reconnector wraps a Dialer with exponential backoff: a failed dial, or
// the caller reporting the MCU unresponsive via Failed, is treated as a
// disconnect, and subsequent Stream calls redial with increasing delay up
// to the maximum backoff. It does not watch the stream for I/O errors
// itself.
type Reconnector struct {
	dial    Dialer
	initial time.Duration
	max     time.Duration

	current  Stream
	backoff  time.Duration
	lastFail time.Time
}

// NewReconnector returns a Reconnector with the given initial and maximum
// backoff durations.
func NewReconnector(dial Dialer, initial, maxBackoff time.Duration) *Reconnector {
	return &Reconnector{dial: dial, initial: initial, max: maxBackoff, backoff: initial}
}

// Stream returns the current live connection, dialing (or redialing, if
// the backoff window has elapsed) as needed.
func (r *Reconnector) Stream(ctx context.Context) (Stream, error) {
	if r.current != nil {
		return r.current, nil
	}
	if !r.lastFail.IsZero() {
		wait := r.backoff - time.Since(r.lastFail)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	s, err := r.dial()
	if err != nil {
		r.recordFailure()
		return nil, err
	}
	r.current = s
	r.backoff = r.initial
	return s, nil
}

// Nudge clears any pending backoff delay, so the next Stream call dials
// immediately instead of waiting out the current window. Used when an
// external signal (e.g. a udev hotplug "add" event for the expected
// device) suggests the MCU just became reachable again.
func (r *Reconnector) Nudge() {
	r.lastFail = time.Time{}
	r.backoff = r.initial
}

// Failed reports that the current connection (if any) is unresponsive —
// e.g. a watchdog-style "no ACK within deadline" timeout — and should be
// torn down and redialed with backoff on the next Stream call.
func (r *Reconnector) Failed() {
	if r.current != nil {
		_ = r.current.Close()
		r.current = nil
	}
	r.recordFailure()
}

func (r *Reconnector) recordFailure() {
	r.lastFail = time.Now()
	r.backoff *= 2
	if r.backoff > r.max {
		r.backoff = r.max
	}
}
