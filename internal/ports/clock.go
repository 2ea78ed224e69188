package ports

import "time"

// Clock abstracts time for services so tests can drive timeout behavior
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock. Times returned by time.Now carry a
// monotonic reading, so elapsed computations within one process are immune
// to wall-clock adjustments.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
