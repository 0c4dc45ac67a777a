package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stageboard/stageboard/internal/models"
)

// redisClient is the subset of *redis.Client the session uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores the user as JSON under a single key, so every process
// pointed at the same Redis shares the login.
type Redis struct {
	client  redisClient
	key     string
	timeout time.Duration
}

// NewRedis wraps a Redis client.
func NewRedis(client redisClient, key string) *Redis {
	return &Redis{client: client, key: key, timeout: 3 * time.Second}
}

func (r *Redis) Get() (*models.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %s: %w", r.key, err)
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", r.key, err)
	}
	return &u, nil
}

func (r *Redis) Set(u *models.User) error {
	if u == nil {
		return r.Clear()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key, string(data), 0).Err(); err != nil {
		return fmt.Errorf("session: redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("session: redis del %s: %w", r.key, err)
	}
	return nil
}
