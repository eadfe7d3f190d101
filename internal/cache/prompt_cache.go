package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-workspace/internal/model"
)

// PromptCache holds the prompt history list of a (workspace, user) pair. A
// short-lived dirty marker set on every new prompt keeps readers from
// refilling the cache with a list that misses the in-flight save.
type PromptCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewPromptCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *PromptCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &PromptCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *PromptCache) GetPrompts(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(wsID, userID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get prompts failed: %w", err)
	}

	var records []model.PromptRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached prompts failed: %w", err)
	}
	return records, true, nil
}

func (c *PromptCache) SetPrompts(ctx context.Context, wsID, userID uint, records []model.PromptRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal prompt cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(wsID, userID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set prompts failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached list and marks the pair dirty.
func (c *PromptCache) Invalidate(ctx context.Context, wsID, userID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(wsID, userID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	if err := c.client.Del(ctx, c.historyKey(wsID, userID)).Err(); err != nil {
		return fmt.Errorf("redis delete prompts failed: %w", err)
	}
	return nil
}

func (c *PromptCache) IsDirty(ctx context.Context, wsID, userID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(wsID, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *PromptCache) historyKey(wsID, userID uint) string {
	return fmt.Sprintf("workspace:prompts:%d:%d", wsID, userID)
}

func (c *PromptCache) dirtyKey(wsID, userID uint) string {
	return fmt.Sprintf("workspace:prompts:dirty:%d:%d", wsID, userID)
}
