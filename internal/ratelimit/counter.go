package ratelimit

import (
	"sync"
	"time"
)

// FixedWindowCounter is an in-process httprate.LimitCounter. It never reports
// a previous-window count, which turns httprate's sliding estimate into a
// plain fixed window.
type FixedWindowCounter struct {
	mu        sync.Mutex
	window    time.Duration
	entries   map[string]*windowCount
	lastSweep time.Time
}

type windowCount struct {
	window time.Time
	count  int
}

// NewFixedWindowCounter returns an empty counter.
func NewFixedWindowCounter() *FixedWindowCounter {
	return &FixedWindowCounter{entries: make(map[string]*windowCount)}
}

func (c *FixedWindowCounter) Config(requestLimit int, windowLength time.Duration) {
	c.mu.Lock()
	c.window = windowLength
	c.mu.Unlock()
}

func (c *FixedWindowCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount to the key's count in currentWindow. Negative
// amounts refund earlier increments; counts never drop below zero.
func (c *FixedWindowCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(currentWindow)
	e, ok := c.entries[key]
	if !ok || !e.window.Equal(currentWindow) {
		if amount <= 0 {
			return nil
		}
		e = &windowCount{window: currentWindow}
		c.entries[key] = e
	}
	e.count += amount
	if e.count < 0 {
		e.count = 0
	}
	return nil
}

func (c *FixedWindowCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.window.Equal(currentWindow) {
		return 0, 0, nil
	}
	return e.count, 0, nil
}

// Len returns the number of tracked keys.
func (c *FixedWindowCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep drops entries from finished windows at most once per window.
// Callers hold mu.
func (c *FixedWindowCounter) sweep(currentWindow time.Time) {
	if c.window <= 0 || currentWindow.Sub(c.lastSweep) < c.window {
		return
	}
	for k, e := range c.entries {
		if e.window.Before(currentWindow) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = currentWindow
}
