package wake

import (
	"sync"
	"time"
)

// Timer is a deadline that stops counting while held. A tool waiting on an
// operator holds its timer so the wait does not count against its timeout.
type Timer struct {
	w *Wake

	mu        sync.Mutex
	t         *time.Timer
	remaining time.Duration
	started   time.Time
	holds     int
	done      bool
}

// Timer arms a holdable deadline that raises w with reason Timeout once d
// of unheld time has passed. A zero or negative d never fires.
func (w *Wake) Timer(d time.Duration) *Timer {
	tm := &Timer{w: w, remaining: d}
	if d <= 0 {
		tm.done = true
		return tm
	}
	tm.arm()
	return tm
}

func (tm *Timer) arm() {
	tm.started = time.Now()
	tm.t = time.AfterFunc(tm.remaining, tm.fire)
}

func (tm *Timer) fire() {
	tm.mu.Lock()
	if tm.done || tm.holds > 0 {
		tm.mu.Unlock()
		return
	}
	tm.done = true
	tm.mu.Unlock()
	tm.w.Signal(Timeout)
}

// Hold stops the clock. Holds nest; each needs a matching Release.
func (tm *Timer) Hold() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.holds++
	if tm.holds > 1 || tm.done || tm.t == nil {
		return
	}
	tm.t.Stop()
	tm.t = nil
	tm.remaining -= time.Since(tm.started)
	if tm.remaining < 0 {
		tm.remaining = 0
	}
}

// Release restarts the clock with whatever time was left when it was held
func (tm *Timer) Release() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.holds == 0 {
		return
	}
	tm.holds--
	if tm.holds > 0 || tm.done || tm.t != nil {
		return
	}
	tm.arm()
}

// Remaining reports the unheld time left before the timer fires
func (tm *Timer) Remaining() time.Duration {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.done {
		return 0
	}
	if tm.t == nil {
		return tm.remaining
	}
	left := tm.remaining - time.Since(tm.started)
	if left < 0 {
		return 0
	}
	return left
}

// Stop disarms the timer. It reports whether the timer had not fired yet.
func (tm *Timer) Stop() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.done {
		return false
	}
	tm.done = true
	if tm.t != nil {
		tm.t.Stop()
		tm.t = nil
	}
	return true
}
