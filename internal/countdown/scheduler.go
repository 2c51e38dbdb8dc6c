// Package countdown runs the single recurring timer that ticks down to an
// eligibility deadline. One handle per session: whoever owns the current
// deadline starts a countdown, and must cancel it before starting another
// when the deadline moves.
package countdown

import (
	"sync"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Remaining is the time left until the deadline, broken up for display.
type Remaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Until computes the remaining time from now to deadline, rounding up to
// whole seconds so a countdown never shows 0 before it expires.
func Until(deadline, now time.Time) Remaining {
	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return Remaining{
		Hours:   secs / 3600,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
	}
}

// Scheduler starts countdowns. The tick interval is one second in
// production; tests inject shorter intervals.
type Scheduler struct {
	clock    Clock
	interval time.Duration
}

// NewScheduler creates a scheduler with 1-second ticks.
func NewScheduler() *Scheduler {
	return &Scheduler{clock: SystemClock{}, interval: time.Second}
}

// NewSchedulerWithOptions creates a scheduler with an injected clock and
// tick interval.
func NewSchedulerWithOptions(clock Clock, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{clock: clock, interval: interval}
}

// Handle controls one running countdown.
type Handle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Cancel stops the countdown. No callbacks fire after Cancel returns.
// It is safe to call multiple times and after expiry.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// Start begins ticking toward deadline. onTick fires immediately and then
// once per interval while now < deadline; onExpire fires exactly once when
// the deadline is reached, after which the countdown stops on its own.
// A deadline already in the past expires on the first tick.
func (s *Scheduler) Start(deadline time.Time, onTick func(Remaining), onExpire func()) *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		if s.fire(deadline, onTick, onExpire, h) {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if s.fire(deadline, onTick, onExpire, h) {
					return
				}
			}
		}
	}()

	return h
}

// fire emits one tick or the terminal expiry. Returns true when the
// countdown is finished.
func (s *Scheduler) fire(deadline time.Time, onTick func(Remaining), onExpire func(), h *Handle) bool {
	select {
	case <-h.stop:
		return true
	default:
	}

	now := s.clock.Now()
	if !now.Before(deadline) {
		if onExpire != nil {
			onExpire()
		}
		return true
	}
	if onTick != nil {
		onTick(Until(deadline, now))
	}
	return false
}
