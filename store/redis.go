package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps JSON-encoded values in Redis under "prefix:path" keys. Values read
// back are decoded into generic JSON types (float64, string, []any, map[string]any).
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	owned  bool
}

// NewRedisStore wraps an existing client. ttl of 0 means no expiration.
func NewRedisStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis creates a client for addr. Close releases it.
func DialRedis(addr, prefix string, ttl time.Duration) *RedisStore {
	s := NewRedisStore(goredis.NewClient(&goredis.Options{Addr: addr}), prefix, ttl)
	s.owned = true
	return s
}

func (s *RedisStore) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + ":" + path
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis store marshal %q: %w", path, err)
	}
	if err := s.client.Set(ctx, s.key(path), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis store put %q: %w", path, err)
	}
	return nil
}

// Patch writes all values in one MULTI/EXEC transaction.
func (s *RedisStore) Patch(ctx context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for path, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis store marshal %q: %w", path, err)
		}
		encoded[path] = data
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for path, data := range encoded {
			pipe.Set(ctx, s.key(path), data, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store patch: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, path string) (any, error) {
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("redis store get %q: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("redis store unmarshal %q: %w", path, err)
	}
	return v, nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
