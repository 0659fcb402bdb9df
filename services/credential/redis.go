package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/synergypro/verifyd/services/redis"
)

// RedisStore keeps payloads under "{prefix}:pending_code:{user}:{channel}".
// The key TTL only bounds storage; expiry is still judged from issued_at.
type RedisStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *goredis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(key Key) string {
	return redis.Key(s.prefix, "pending_code", strconv.FormatUint(uint64(key.UserID), 10), string(key.Channel))
}

func (s *RedisStore) Put(ctx context.Context, key Key, code string, issuedAt time.Time) error {
	if err := s.client.Set(ctx, s.key(key), EncodePayload(code, issuedAt), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending code: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending code: %w", err)
	}
	return DecodePayload(payload)
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending code: %w", err)
	}
	return nil
}
