// Package clock derives the lock state of a capsule from its unlock time.
//
// Evaluate is a pure function and is what the access policy uses. Countdown
// adds the exactly-once unlock notification on top of it and can be driven
// either by explicit Sample calls or by a ticker started with Start.
package clock

import (
	"context"
	"sync"
	"time"
)

// Remaining is the time left until unlock, broken into calendar-free units.
// All fields are zero once Unlocked is true.
type Remaining struct {
	Days     int64
	Hours    int
	Minutes  int
	Seconds  int
	Unlocked bool
}

// Evaluate reports whether unlockAt has been reached at now (equality
// unlocks) and, while locked, how much time is left, floored to the second.
func Evaluate(unlockAt, now time.Time) Remaining {
	if !now.Before(unlockAt) {
		return Remaining{Unlocked: true}
	}

	secs := int64(unlockAt.Sub(now) / time.Second)
	return Remaining{
		Days:    secs / 86400,
		Hours:   int(secs % 86400 / 3600),
		Minutes: int(secs % 3600 / 60),
		Seconds: int(secs % 60),
	}
}

// Countdown tracks a single unlock time and fires onUnlock exactly once, on
// the first sample whose verdict is unlocked.
type Countdown struct {
	unlockAt time.Time
	onUnlock func()

	mu      sync.Mutex
	fired   bool
	stopped bool
	last    Remaining
}

// NewCountdown returns a Countdown for unlockAt. onUnlock may be nil.
func NewCountdown(unlockAt time.Time, onUnlock func()) *Countdown {
	return &Countdown{unlockAt: unlockAt, onUnlock: onUnlock}
}

// UnlockAt returns the time this countdown targets.
func (c *Countdown) UnlockAt() time.Time {
	return c.unlockAt
}

// Sample evaluates the countdown at now. The unlock notification runs
// synchronously, outside the lock, on the first unlocked sample only. A
// stopped countdown still reports the verdict but never notifies.
func (c *Countdown) Sample(now time.Time) Remaining {
	r := Evaluate(c.unlockAt, now)

	c.mu.Lock()
	c.last = r
	notify := r.Unlocked && !c.fired && !c.stopped
	if notify {
		c.fired = true
	}
	c.mu.Unlock()

	if notify && c.onUnlock != nil {
		c.onUnlock()
	}
	return r
}

// Last returns the most recent sample.
func (c *Countdown) Last() Remaining {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Fired reports whether the unlock notification has run.
func (c *Countdown) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Start samples immediately and then once per interval on a background
// goroutine, passing each sample to onTick (which may be nil). Ticking ends
// when ctx is cancelled or the returned stop function is called; stop blocks
// until the goroutine has exited, after which no callback runs again, so it
// must not be called from onTick or onUnlock.
func (c *Countdown) Start(ctx context.Context, interval time.Duration, now func() time.Time, onTick func(Remaining)) (stop func()) {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	tick := func() {
		if ctx.Err() != nil {
			return
		}
		r := c.Sample(now())
		if onTick != nil && ctx.Err() == nil {
			onTick(r)
		}
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.stopped = true
			c.mu.Unlock()
			cancel()
			<-done
		})
	}
}
