package app

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer collapses a burst of triggers into a single fire after a quiet window.
// Each Trigger cancels the pending timer and schedules a new one.
//
// It is not safe for concurrent use; the coordinator drives it from its own goroutine
// and selects on C.
type Debouncer struct {
	clock  clockwork.Clock
	window time.Duration
	timer  clockwork.Timer
}

func NewDebouncer(clock clockwork.Clock, window time.Duration) *Debouncer {
	return &Debouncer{clock: clock, window: window}
}

// Trigger (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.NewTimer(d.window)
}

// C fires once the window elapses without another Trigger.
// It returns a nil channel when nothing is pending, which blocks forever in a select.
func (d *Debouncer) C() <-chan time.Time {
	if d.timer == nil {
		return nil
	}
	return d.timer.Chan()
}

// Stop cancels the pending fire. It reports whether one was pending.
// Callers also invoke it after receiving from C to clear the fired timer.
func (d *Debouncer) Stop() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

func (d *Debouncer) Pending() bool {
	return d.timer != nil
}
