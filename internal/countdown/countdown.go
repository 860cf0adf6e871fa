// Package countdown provides a cancellable fixed-tick timer. The return page
// uses it to auto-close a gateway return session after a short grace period;
// tearing the surrounding context down must cancel the timer so it can never
// fire into a context that is gone.
package countdown

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTicks and DefaultInterval encode the return-page policy: navigate
// away after 5 ticks of one second, regardless of outcome.
const (
	DefaultTicks    = 5
	DefaultInterval = time.Second
)

// Countdown fires a callback once after a fixed number of ticks unless
// stopped first. Zero value is not usable; construct with New.
type Countdown struct {
	ticks    int
	interval time.Duration
	fn       func()

	remaining atomic.Int64
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New builds a countdown of `ticks` ticks of `interval` each. fn runs at
// most once, on the countdown's own goroutine, when the last tick elapses.
func New(ticks int, interval time.Duration, fn func()) *Countdown {
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Countdown{
		ticks:    ticks,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.remaining.Store(int64(ticks))
	return c
}

// Start begins ticking. Call at most once.
func (c *Countdown) Start() {
	go c.run()
}

func (c *Countdown) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	left := c.ticks
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			left--
			c.remaining.Store(int64(left))
			if left <= 0 {
				c.fn()
				return
			}
		}
	}
}

// Stop cancels the countdown. Safe to call multiple times and after the
// callback has fired; a stopped countdown never fires.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Remaining reports the ticks left, for display.
func (c *Countdown) Remaining() int {
	left := c.remaining.Load()
	if left < 0 {
		return 0
	}
	return int(left)
}

// Done is closed once the countdown has either fired or been stopped.
func (c *Countdown) Done() <-chan struct{} { return c.done }
