package sim

// Clock is the virtual millisecond clock shared by all lanes of a run.
//
// It never reads wall-clock time; it moves only when the Runner ticks.
// Clock is not safe for concurrent use.
type Clock struct {
	now int64
}

// NewClock creates a clock at time 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock at a specific virtual time.
func NewClockAt(ms int64) *Clock {
	return &Clock{now: ms}
}

// Now returns the current virtual time in milliseconds.
func (c *Clock) Now() int64 {
	return c.now
}

// Advance moves the clock forward by deltaMs and returns the new time.
func (c *Clock) Advance(deltaMs int64) int64 {
	c.now += deltaMs
	return c.now
}

// Reset rewinds the clock to 0.
func (c *Clock) Reset() {
	c.now = 0
}
