package testutil

import (
	"sync"
	"time"
)

// Clock is a controllable time source. Its Now method satisfies the
// func() time.Time hooks services accept.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to now, or to 2023-02-14 15:04:05 local
// time when no time is given.
func NewClock(now ...time.Time) *Clock {
	t := time.Date(2023, 2, 14, 15, 4, 5, 0, time.Local)
	if len(now) > 0 {
		t = now[0]
	}
	return &Clock{now: t}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
