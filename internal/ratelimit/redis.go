package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript performs the refill-then-consume sequence atomically on the
// server so concurrent gate instances cannot interleave on one bucket. The
// bucket hash carries its own TTL, which doubles as idle eviction.
//
// KEYS[1] bucket hash
// ARGV: capacity, refill tokens/sec, cost, now unix-ms, idle TTL seconds
// Returns: {allowed 0|1, remaining tokens as string}
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(b[1])
local ts = tonumber(b[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
else
  local elapsed = (now - ts) / 1000
  if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * refill)
    ts = now
  end
end

local allowed = 0
if cost <= tokens then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tostring(tokens)}
`)

// Redis is a Store that keeps buckets in Redis, for running more than one
// gate instance against a shared budget.
type Redis struct {
	rdb          *redis.Client
	prefix       string
	capacity     int
	refillPerSec float64
	idleTTL      time.Duration
	now          func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed bucket store. Keys are written as
// "<prefix>:bucket:<client key>".
func NewRedis(rdb *redis.Client, prefix string, capacity int, refillPerSec float64, idleTTL time.Duration) *Redis {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSec <= 0 {
		refillPerSec = DefaultRefillPerSec
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Redis{
		rdb:          rdb,
		prefix:       prefix,
		capacity:     capacity,
		refillPerSec: refillPerSec,
		idleTTL:      idleTTL,
		now:          time.Now,
	}
}

func (s *Redis) TryConsume(ctx context.Context, key string, cost int) (Result, error) {
	if cost < 0 {
		return Result{}, ErrInvalidCost
	}
	return s.run(ctx, key, cost)
}

func (s *Redis) Peek(ctx context.Context, key string) (Result, error) {
	// A zero-cost consume refills and reads without spending anything.
	return s.run(ctx, key, 0)
}

func (s *Redis) run(ctx context.Context, key string, cost int) (Result, error) {
	vals, err := consumeScript.Run(ctx, s.rdb,
		[]string{s.bucketKey(key)},
		s.capacity,
		s.refillPerSec,
		cost,
		s.now().UnixMilli(),
		int(s.idleTTL.Seconds()),
	).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit consume: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("ratelimit consume: unexpected reply %v", vals)
	}

	allowed, _ := vals[0].(int64)
	remaining, err := parseTokens(vals[1])
	if err != nil {
		return Result{}, err
	}

	res := Result{Allowed: allowed == 1, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = retryAfter(float64(cost)-remaining, s.refillPerSec)
	}
	return res, nil
}

func (s *Redis) bucketKey(key string) string {
	return s.prefix + ":bucket:" + key
}

func parseTokens(v any) (float64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("ratelimit consume: unexpected token reply %T", v)
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("ratelimit consume: parse tokens: %w", err)
	}
	if f < 0 {
		f = 0
	}
	return f, nil
}
