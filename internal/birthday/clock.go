package birthday

import "time"

// Clock abstracts time.Now so "today" can be pinned in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the given location (local time when nil).
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// Today returns the clock's current calendar date.
func Today(c Clock) Date {
	if c == nil {
		c = SystemClock{}
	}
	return DateOf(c.Now())
}
