package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"procurement-engine/internal/core"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "po:amendment:"

// RedisStore keeps sessions as JSON values with a redis expiry, so they are shared by
// every server instance.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (core.AmendmentSession, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.AmendmentSession{}, ErrNotFound
		}
		return core.AmendmentSession{}, fmt.Errorf("get amendment session: %w", err)
	}
	var sess core.AmendmentSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return core.AmendmentSession{}, fmt.Errorf("decode amendment session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Put(ctx context.Context, token string, sess core.AmendmentSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode amendment session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+token, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store amendment session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete amendment session: %w", err)
	}
	return nil
}
