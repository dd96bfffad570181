package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Memory is the in-process Store: one rate.Limiter per key, created full
// on first touch, plus a periodic sweeper that evicts idle buckets so the
// map stays bounded.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry

	capacity     int
	refillPerSec float64

	idleTTL    time.Duration
	sweepEvery time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var _ Store = (*Memory)(nil)

// MemoryOption tunes a Memory store.
type MemoryOption func(*Memory)

func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.idleTTL = d }
}

func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sweepEvery = d }
}

// NewMemory creates an in-memory bucket store. Capacity and refill rate
// fall back to the package defaults when non-positive.
func NewMemory(capacity int, refillPerSec float64, opts ...MemoryOption) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSec <= 0 {
		refillPerSec = DefaultRefillPerSec
	}
	m := &Memory{
		buckets:      make(map[string]*bucketEntry),
		capacity:     capacity,
		refillPerSec: refillPerSec,
		idleTTL:      DefaultIdleTTL,
		sweepEvery:   DefaultSweepInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) TryConsume(_ context.Context, key string, cost int) (Result, error) {
	if cost < 0 {
		return Result{}, ErrInvalidCost
	}

	lim := m.bucket(key)

	// rate.Limiter locks internally, so refill-then-consume is atomic per
	// key without holding the map mutex across the call.
	now := time.Now()
	if lim.AllowN(now, cost) {
		return Result{Allowed: true, Remaining: tokens(lim)}, nil
	}

	remaining := tokens(lim)
	return Result{
		Allowed:    false,
		Remaining:  remaining,
		RetryAfter: retryAfter(float64(cost)-remaining, m.refillPerSec),
	}, nil
}

// Peek reports the balance without consuming, creating, or touching a
// bucket. A key with no bucket holds full capacity.
func (m *Memory) Peek(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	ent, ok := m.buckets[key]
	m.mu.Unlock()

	if !ok {
		return Result{Allowed: true, Remaining: float64(m.capacity)}, nil
	}
	return Result{Allowed: true, Remaining: tokens(ent.lim)}, nil
}

// bucket returns the key's limiter, creating it full on first access, and
// marks the key as touched for the sweeper.
func (m *Memory) bucket(key string) *rate.Limiter {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ent, ok := m.buckets[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(rate.Limit(m.refillPerSec), m.capacity)
	m.buckets[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

// Len reports the number of live buckets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Sweep removes buckets idle for longer than the idle TTL. The cutoff is
// fixed before the map is scanned, and lastSeen updates happen under the
// same mutex, so a bucket touched after the cutoff was computed is kept.
func (m *Memory) Sweep() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ent := range m.buckets {
		if ent.lastSeen.Before(cutoff) {
			delete(m.buckets, k)
		}
	}
}

// Start launches the background sweeper. Stop terminates it.
func (m *Memory) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go func() {
			defer close(m.done)
			t := time.NewTicker(m.sweepEvery)
			defer t.Stop()
			for {
				select {
				case <-m.stop:
					return
				case <-t.C:
					m.Sweep()
				}
			}
		}()
	})
}

// Stop shuts the sweeper down and waits for it to exit. Safe to call
// multiple times or without a prior Start.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

func tokens(lim *rate.Limiter) float64 {
	t := lim.Tokens()
	if t < 0 {
		return 0
	}
	return t
}
