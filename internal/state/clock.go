package state

// Clock hands out emoji identifiers. It only moves forward, so an id retired
// by a removal is never handed out again while the composition lives.
type Clock struct {
	next int
}

// Tick returns the next unused id and advances the clock.
func (c *Clock) Tick() int {
	id := c.next
	c.next++
	return id
}

// Update moves the clock past an id seen elsewhere, e.g. one read back from
// persisted data.
func (c *Clock) Update(seen int) {
	if seen >= c.next {
		c.next = seen + 1
	}
}

// Peek reports the id the next Tick will return.
func (c *Clock) Peek() int {
	return c.next
}
