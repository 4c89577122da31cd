package service

import "time"

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// UTCNow returns the current time in UTC.
func (SystemClock) UTCNow() time.Time {
	return time.Now().UTC()
}

// FixedClock is a Clock pinned to a single instant, for tests.
type FixedClock struct {
	Now time.Time
}

// UTCNow returns the pinned instant in UTC.
func (c FixedClock) UTCNow() time.Time {
	return c.Now.UTC()
}
