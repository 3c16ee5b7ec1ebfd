package timing

import "time"

// Clock supplies the current time. Controllers take a Clock instead of
// calling time.Now so pause and dwell arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
