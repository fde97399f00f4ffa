package core

import "time"

// Clock measures the time between ticks and the total time since it was started.
type Clock struct {
	start     time.Time
	last      time.Time
	delta     time.Duration
	total     time.Duration
	frameTick uint64
	now       func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Starts the provided clock. Resets elapsed and total time.
func (c *Clock) Start() {
	c.start = c.now()
	c.last = c.start
	c.delta = 0
	c.total = 0
	c.frameTick = 0
}

// Tick advances the clock. Has no effect on non-started clocks.
func (c *Clock) Tick() {
	if c.start.IsZero() {
		return
	}
	now := c.now()
	c.delta = now.Sub(c.last)
	c.total = now.Sub(c.start)
	c.last = now
	c.frameTick++
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.start = time.Time{}
}

// DeltaSeconds is the time between the last two ticks.
func (c *Clock) DeltaSeconds() float64 {
	return c.delta.Seconds()
}

// TotalSeconds is the time between Start and the last tick.
func (c *Clock) TotalSeconds() float64 {
	return c.total.Seconds()
}

func (c *Clock) FrameCount() uint64 {
	return c.frameTick
}
