// Package timectl computes per-move thinking deadlines from UCI clock parameters and runs the
// cooperative timer that cancels a search when its deadline elapses.
package timectl

import (
	"sync"
	"time"

	"github.com/seekerror/stdlib/pkg/util/iox"
)

// Clock holds the UCI `go` time-control parameters for the side to move.
type Clock struct {
	TimeMS, IncMS int
	MovesToGo     int // 0 == rest of game
	MoveTimeMS    int // overrides the formula entirely when set
}

// Deadline computes the think-time budget in milliseconds:
//
//	deadline = (clock_ms + (n-1)*inc) / (n+7), capped at clock_ms/15
//
// where n is MovesToGo if set, else 40. MoveTimeMS, if set, overrides the formula outright. A
// non-positive result means "run until explicit cancel" (used by fixed-depth search and ponder).
func (c Clock) Deadline() time.Duration {
	if c.MoveTimeMS > 0 {
		return time.Duration(c.MoveTimeMS) * time.Millisecond
	}
	if c.TimeMS <= 0 {
		return 0
	}

	n := c.MovesToGo
	if n <= 0 {
		n = 40
	}

	d := (c.TimeMS + (n-1)*c.IncMS) / (n + 7)
	if cap := c.TimeMS / 15; d > cap {
		d = cap
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d) * time.Millisecond
}

// Canceller is anything that can be told to stop searching. Search worker pools and ponder
// controllers both implement it by flipping their root cancel flag.
type Canceller interface {
	Cancel()
}

// Timer runs a cooperative deadline wait: it either elapses, is notified early (a tablebase hit
// or an explicit Stop), or is disabled entirely (deadline <= 0). On firing it calls cancelFn on
// the target exactly once; Closed reports the same event for callers that want to select on it.
type Timer struct {
	closer   iox.AsyncCloser
	once     sync.Once
	cancelFn func()
	timer    *time.Timer
}

// Start launches the timer. A deadline of 0 or negative disables it: Start returns a Timer whose
// Stop is a no-op and that never calls cancelFn.
func Start(deadline time.Duration, cancelFn func()) *Timer {
	t := &Timer{closer: iox.NewAsyncCloser(), cancelFn: cancelFn}
	if deadline <= 0 {
		return t
	}
	t.timer = time.AfterFunc(deadline, t.fire)
	return t
}

// Notify wakes the timer early (used for a tablebase hit that should cancel immediately).
func (t *Timer) Notify() {
	t.fire()
}

func (t *Timer) fire() {
	t.once.Do(func() {
		t.closer.Close()
		if t.cancelFn != nil {
			t.cancelFn()
		}
	})
}

// Closed reports when the timer has fired or been stopped.
func (t *Timer) Closed() <-chan struct{} {
	return t.closer.Closed()
}

// Stop releases the timer without firing cancelFn, if it has not already fired.
func (t *Timer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.closer.Close()
}
