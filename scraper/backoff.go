package scraper

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays as a linear ramp with uniform jitter:
// Step*attempt + U(0, Jitter). It is stateless and safe to share.
type Backoff struct {
	Step   time.Duration
	Jitter time.Duration
}

// Network retries transient fetch failures: 3s, 6s, 9s... plus up to 2s jitter.
var Network = Backoff{Step: 3 * time.Second, Jitter: 2 * time.Second}

// Blocked backs off harder when a block/auth wall is hit: 5s, 10s... plus
// up to 3s jitter.
var Blocked = Backoff{Step: 5 * time.Second, Jitter: 3 * time.Second}

// Delay returns the wait before retrying after the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * b.Step
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}

// Jittered returns a random duration uniformly drawn from [min, max].
func Jittered(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
