package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/domain"
)

// RedisUserCache implements UserCache on Redis.
type RedisUserCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisUserCache(cfg config.RedisConfig) (*RedisUserCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisUserCache{
		client: client,
		prefix: cfg.CachePrefix,
		ttl:    cfg.CacheTTL,
	}, nil
}

func (c *RedisUserCache) key(userID string) string {
	return fmt.Sprintf("%s:id:%s", c.prefix, userID)
}

func (c *RedisUserCache) Get(ctx context.Context, userID string) (*domain.User, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &user, nil
}

func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return c.client.Set(ctx, c.key(user.ID), data, c.ttl).Err()
}

func (c *RedisUserCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *RedisUserCache) Close() error {
	return c.client.Close()
}
