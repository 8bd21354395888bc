package service

import (
	"math/rand"
	"time"
)

// Clock returns the current time. Services take one so that tests can order events.
type Clock func() time.Time

// SystemClock is UTC wall time at millisecond precision, which every supported dialect stores exactly.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Picker returns an index in [0, n).
type Picker func(n int) int

func RandomPicker(n int) int {
	return rand.Intn(n)
}
