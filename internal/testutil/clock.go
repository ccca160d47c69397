package testutil

import "time"

// FixedClock always reports the same instant.
//
// Thread-safety: FixedClock is immutable and safe for concurrent use.
type FixedClock struct {
	t time.Time
}

// NewFixedClock creates a clock frozen at t.
// A zero t freezes at 2024-01-01T00:00:00Z.
func NewFixedClock(t time.Time) FixedClock {
	if t.IsZero() {
		t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return FixedClock{t: t}
}

// Now returns the frozen instant.
func (c FixedClock) Now() time.Time {
	return c.t
}
