package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/linksort/linksort-chat/internal/core/error"
	logx "github.com/linksort/linksort-chat/pkg/logger"
)

const scanBatch = 100

// RedisStore keeps partitions in Redis under a namespace so several client
// processes can share one cache.
type RedisStore struct {
	rdb       redis.Cmdable
	namespace string
	ttl       time.Duration
}

func NewRedisStore(rdb redis.Cmdable, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: strings.TrimSuffix(namespace, ":"), ttl: ttl}
}

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rk := s.redisKey(key)
	b, err := s.rdb.Get(ctx, rk).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", rk).Msg("failed to read cache entry from redis")
		return nil, false, errx.WrapRedis(err)
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	rk := s.redisKey(key)
	if err := s.rdb.Set(ctx, rk, value, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", rk).Msg("failed to write cache entry to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) DeletePartition(ctx context.Context, p Partition) (int, error) {
	keys := []string{s.redisKey(string(p))}

	pattern := escapeGlob(s.redisKey(string(p))+":") + "*"
	iter := s.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logx.Error().Err(err).Str("pattern", pattern).Msg("failed to scan cache partition")
		return 0, errx.WrapRedis(err)
	}

	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		logx.Error().Err(err).Str("partition", p.String()).Msg("failed to delete cache partition")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*RedisStore)(nil)
