package cache

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"
)

// StateCache persists session-state blobs in Redis without expiry.
type StateCache struct {
	client *redisv9.Client
	prefix string
}

func NewStateCache(client *redisv9.Client, prefix string) *StateCache {
	return &StateCache{client: client, prefix: prefix}
}

func (c *StateCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get state failed: %w", err)
	}
	return raw, true, nil
}

func (c *StateCache) Set(ctx context.Context, key string, value []byte) error {
	return c.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany writes every entry inside one MULTI/EXEC transaction.
func (c *StateCache) SetMany(ctx context.Context, entries map[string][]byte) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, c.prefix+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set state failed: %w", err)
	}
	return nil
}

func (c *StateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
