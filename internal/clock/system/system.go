// Package system provides the wall clock used to stamp runs.
package system

import "time"

// Clock implements catalogue.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time with the monotonic reading stripped, so
// values compare and serialize predictably.
func (Clock) Now() time.Time {
	return time.Now().UTC().Round(0)
}
