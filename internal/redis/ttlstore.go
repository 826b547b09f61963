package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

// TTLStore is a namespaced byte store whose entries expire after ttl.
type TTLStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewTTLStore(client *redis.Client, prefix string, ttl time.Duration) *TTLStore {
	return &TTLStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *TTLStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.prefix+key, err)
	}
	return nil
}

func (s *TTLStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get %s: %w", s.prefix+key, err)
	}
	return data, nil
}
