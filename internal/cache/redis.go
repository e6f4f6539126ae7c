package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces this application's keys inside a shared
// Redis instance.
const redisKeyPrefix = "tradingagents:cache:"

// RedisBackend stores entries as JSON blobs in an external Redis,
// letting Redis enforce the TTL as well so shared instances self-clean.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(addr, password string, db int) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	var expiry time.Duration // 0 = no expiry
	if entry.TTLSeconds > 0 {
		expiry = time.Duration(entry.TTLSeconds) * time.Second
	}
	return b.client.Set(ctx, redisKeyPrefix+entry.Key, data, expiry).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+pattern, 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(redisKeyPrefix):])
	}
	return out, iter.Err()
}

func (b *RedisBackend) Clear(ctx context.Context) error {
	keys, err := b.Keys(ctx, "*")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (b *RedisBackend) Stats(ctx context.Context) BackendStats {
	keys, err := b.Keys(ctx, "*")
	if err != nil {
		return BackendStats{Backend: "redis"}
	}
	return BackendStats{Backend: "redis", Entries: len(keys)}
}

// Ping verifies connectivity so the manager can drop an unreachable
// Redis from the chain at startup instead of logging per call.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
