package redis

import (
	"context"
	"testing"

	"quoteflow/common"
	"quoteflow/srv"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// NewTestRedisService returns a service backed by redis db 1, flushed. The
// test is skipped when no redis server is reachable.
func NewTestRedisService(t *testing.T) (*srv.Delegator, *redis.Client) {
	storage := NewTestRedisStorage(t)
	streamer := &Streamer{Client: storage.Client}
	return srv.NewDelegator(storage, streamer), storage.Client
}

func NewTestRedisStorage(t *testing.T) *Storage {
	client := NewTestRedisClient()
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", client.Options().Addr, err)
	}

	// Flush the database synchronously to ensure a clean state for each test
	require.NoError(t, client.FlushDB(ctx).Err())

	return &Storage{Client: client}
}

func NewTestRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     common.GetRedisAddr(),
		Password: "",
		DB:       1,
	})
}
