package domain

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RandomSource is satisfied by *math/rand/v2.Rand.
type RandomSource interface {
	IntN(n int) int
}
