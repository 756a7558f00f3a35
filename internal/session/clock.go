package session

import "time"

// Countdown tracks the time left until an absolute deadline. The remaining
// time is recomputed from the deadline on every reading, so a delayed or
// coalesced tick can never drift the clock; it only makes the next reading
// jump to the true value.
type Countdown struct {
	deadline time.Time
	fired    bool
}

// NewCountdown returns a countdown toward deadline. A zero deadline means no
// time limit: the countdown never expires.
func NewCountdown(deadline time.Time) *Countdown {
	return &Countdown{deadline: deadline}
}

func (c *Countdown) Deadline() time.Time {
	return c.deadline
}

// Remaining returns the time left at now, floored at zero.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	if c.deadline.IsZero() {
		return 0
	}
	d := c.deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the deadline has passed at now. It fires exactly
// once: later calls return false so expiry handling runs a single time.
func (c *Countdown) Expired(now time.Time) bool {
	if c.deadline.IsZero() || c.fired {
		return false
	}
	if now.Before(c.deadline) {
		return false
	}
	c.fired = true
	return true
}
