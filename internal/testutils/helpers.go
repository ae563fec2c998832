package testutils

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// Clock is a settable clock for expiry tests. Safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TempDatafile returns a datafile path inside a fresh temporary directory.
// The file itself is not created.
func TempDatafile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data", "sessions.db")
}
