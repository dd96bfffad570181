// Package ratelimit implements the per-client token bucket that bounds
// request throughput. Buckets start full, refill lazily at a fixed rate,
// and callers pay a cost proportional to the weight of the operation.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Default bucket parameters.
const (
	DefaultCapacity     = 100
	DefaultRefillPerSec = 5.0

	// DefaultIdleTTL is how long a bucket may sit untouched before the
	// sweeper may evict it; DefaultSweepInterval is how often the sweeper
	// runs.
	DefaultIdleTTL       = 1 * time.Hour
	DefaultSweepInterval = 15 * time.Minute
)

// ErrInvalidCost is returned for a negative cost. A negative cost must
// never credit tokens back into a bucket.
var ErrInvalidCost = errors.New("ratelimit: cost must be non-negative")

// Result reports the outcome of a consume or peek.
type Result struct {
	Allowed bool

	// Remaining is the token balance after the call.
	Remaining float64

	// RetryAfter estimates how long until the bucket holds enough tokens
	// for the rejected cost. Zero when Allowed.
	RetryAfter time.Duration
}

// Store hands out token-bucket decisions per client key. The
// refill-then-consume sequence must be atomic per key under concurrent
// callers; unrelated keys need no mutual ordering.
type Store interface {
	// TryConsume refills the key's bucket for elapsed time, then consumes
	// cost tokens if the balance covers it. A cost of zero always succeeds.
	TryConsume(ctx context.Context, key string, cost int) (Result, error)

	// Peek reports the current balance without consuming anything.
	Peek(ctx context.Context, key string) (Result, error)
}

// retryAfter estimates the wait until deficit tokens have accrued at
// refillPerSec, rounded up to whole seconds with a 1s floor.
func retryAfter(deficit, refillPerSec float64) time.Duration {
	if refillPerSec <= 0 {
		return time.Second
	}
	secs := deficit / refillPerSec
	d := time.Duration(secs*float64(time.Second) + float64(time.Second-1))
	d = d.Truncate(time.Second)
	if d < time.Second {
		d = time.Second
	}
	return d
}
