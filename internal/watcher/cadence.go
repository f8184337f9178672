package watcher

import "time"

// Cadence paces a polling loop between an active floor and a standby ceiling.
// It starts at the ceiling, drops to the floor on activity and doubles back
// toward the ceiling while nothing happens. Not safe for concurrent use.
type Cadence struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewCadence starts at ceiling. A non-positive floor becomes 1ms and a
// ceiling below the floor is raised to it.
func NewCadence(floor, ceiling time.Duration) *Cadence {
	if floor <= 0 {
		floor = time.Millisecond
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Cadence{floor: floor, ceiling: ceiling, current: ceiling}
}

// Interval is the wait before the next poll.
func (c *Cadence) Interval() time.Duration {
	return c.current
}

// Active resets the interval to the floor.
func (c *Cadence) Active() {
	c.current = c.floor
}

// Idle doubles the interval, capped at the ceiling.
func (c *Cadence) Idle() {
	next := c.current * 2
	if next > c.ceiling || next <= 0 {
		next = c.ceiling
	}
	c.current = next
}
