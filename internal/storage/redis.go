package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCompletionPrefix = "sk:cmp:"

// RedisCompletions is a durable completion tier backed by Redis. Entries
// expire through the key TTL and are additionally filtered by creation time.
type RedisCompletions struct {
	rdb *redis.Client
	ttl time.Duration
}

// ConnectRedisCompletions parses redisURL and pings the server.
func ConnectRedisCompletions(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCompletions, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCompletions{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisCompletions) Close() error {
	return r.rdb.Close()
}

func (r *RedisCompletions) GetCompletion(ctx context.Context, key string, since time.Time) (*Completion, error) {
	data, err := r.rdb.Get(ctx, redisCompletionPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if c.CreatedAt.Before(since) {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *RedisCompletions) PutCompletion(ctx context.Context, key string, c Completion) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisCompletionPrefix+key, data, r.ttl).Err()
}
