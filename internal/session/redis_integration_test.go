//go:build integration

package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Run with: STAGEBOARD_REDIS_ADDR=127.0.0.1:6379 go test -tags integration ./internal/session/
func TestRedis_Server(t *testing.T) {
	addr := os.Getenv("STAGEBOARD_REDIS_ADDR")
	if addr == "" {
		t.Skip("STAGEBOARD_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}

	key := "stageboard:test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), key) })
	exercise(t, NewRedis(client, key))
}
