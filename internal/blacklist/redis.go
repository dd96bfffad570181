package blacklist

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores the deny-list in a single Redis set so multiple gate
// instances share one view of it.
type Redis struct {
	rdb *redis.Client
	key string
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store using the given set key.
func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

func (s *Redis) Contains(ctx context.Context, ip string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key, ip).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return ok, nil
}

func (s *Redis) Add(ctx context.Context, ip string) error {
	if err := s.rdb.SAdd(ctx, s.key, ip).Err(); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

func (s *Redis) Remove(ctx context.Context, ip string) error {
	if err := s.rdb.SRem(ctx, s.key, ip).Err(); err != nil {
		return fmt.Errorf("blacklist remove: %w", err)
	}
	return nil
}
