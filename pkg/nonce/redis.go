// pkg/nonce/redis.go
package nonce

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "edgegate:nonce:"

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore backs the nonce store with redis, which makes consumption
// atomic across processes (GETDEL).
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, keyPrefix+nonce, "1", ttl).Err()
}

func (s *redisStore) Consume(ctx context.Context, nonce string) (bool, error) {
	err := s.rdb.GetDel(ctx, keyPrefix+nonce).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
