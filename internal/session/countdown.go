package session

import (
	"sync"
	"time"
)

// CountdownState is the scheduler's lifecycle state.
type CountdownState int32

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownExpired
)

// Countdown is the single authoritative ticking clock of one active session.
// It ticks once per interval, derives remaining time from the fixed end
// timestamp (never storing it) and fires the expiry callback exactly once
// the moment remaining reaches zero. A tab suspend that skips ticks still
// results in a single clamped expiry, never repeated negative ticks.
type Countdown struct {
	end      time.Time
	onExpire func()

	// interval and now are fixed defaults, overridden in tests.
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	state   CountdownState
	stopped bool
	stopCh  chan struct{}
}

// NewCountdown creates an idle countdown toward end. onExpire is invoked
// exactly once, from the scheduler's own goroutine.
func NewCountdown(end time.Time, onExpire func()) *Countdown {
	return &Countdown{
		end:      end,
		onExpire: onExpire,
		interval: time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start transitions Idle → Running and begins ticking. If the deadline has
// already passed (e.g. resuming long after expiry), it goes straight to
// Expired and fires the callback once. Calling Start twice is a no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.state != CountdownIdle || c.stopped {
		c.mu.Unlock()
		return
	}

	if !c.end.After(c.now()) {
		c.state = CountdownExpired
		c.mu.Unlock()
		go c.onExpire()
		return
	}

	c.state = CountdownRunning
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.Remaining() > 0 {
				continue
			}
			if c.expire() {
				c.onExpire()
			}
			return
		}
	}
}

// expire performs the Running → Expired transition. Returns false if the
// countdown was already expired or stopped, guarding the callback against
// double invocation.
func (c *Countdown) expire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CountdownExpired || c.stopped {
		return false
	}
	c.state = CountdownExpired
	return true
}

// Stop cancels ticking without firing the expiry callback. Idempotent; safe
// to call after expiry or before Start.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Remaining derives the time left, clamped at zero. It is never persisted —
// a reload recomputes it from the stored end timestamp.
func (c *Countdown) Remaining() time.Duration {
	if r := c.end.Sub(c.now()); r > 0 {
		return r
	}
	return 0
}

// State returns the current lifecycle state.
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
