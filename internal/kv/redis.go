package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "quill:kv:"

// casScript swaps KEYS[1] to ARGV[2] when it currently holds ARGV[1].
// ARGV[3] == "1" means the key must be absent instead.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if ARGV[3] == '1' then
	if cur then return 0 end
else
	if cur ~= ARGV[1] then return 0 end
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// RedisStore stores entries as plain string keys under a common prefix.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an existing client. Close does not close the client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	absent := "0"
	if prev == nil {
		absent = "1"
	}
	n, err := casScript.Run(ctx, s.rdb, []string{redisKeyPrefix + key}, prev, next, absent).Int()
	if err != nil {
		return false, fmt.Errorf("cas %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning keys: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return nil }
