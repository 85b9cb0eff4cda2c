package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetupTestRedis returns a client for CAMPHUB_TEST_REDIS_ADDR (default
// localhost:6379) and a key prefix unique to the test. The test is skipped
// when Redis is not reachable.
func SetupTestRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	rdb, prefix, err := OpenTestRedis(t)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return rdb, prefix
}

// OpenTestRedis is SetupTestRedis without the skip.
func OpenTestRedis(t *testing.T) (*redis.Client, string, error) {
	t.Helper()

	addr := os.Getenv("CAMPHUB_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, "", err
	}

	prefix := fmt.Sprintf("camphub_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
		_ = rdb.Close()
	})
	return rdb, prefix, nil
}
