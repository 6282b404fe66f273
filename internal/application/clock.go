package application

import "time"

// Clock so step timing can be faked in tests
type Clock interface {
	Now() time.Time
}

// SystemClock default implementation, uses time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
