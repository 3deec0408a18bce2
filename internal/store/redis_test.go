package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MINES_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	defer r.Close()

	playerID := "test-" + uuid.NewString()
	t.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: addr})
		client.Del(context.Background(), "mines:player:"+playerID)
		client.Close()
	})

	exerciseStore(t, r, playerID, 3)
}
