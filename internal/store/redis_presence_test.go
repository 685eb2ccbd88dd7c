package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Set REDIS_TEST_ADDR (for example localhost:6379) to run against a real server.
func newTestRedisPresence(t *testing.T) *RedisPresence {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	p, err := NewRedisPresence(context.Background(), RedisConfig{Addr: addr, DB: 15, NodeID: "node-test", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.client.FlushDB(context.Background()).Err()
		_ = p.Close()
	})
	return p
}

func TestRedisPresence_Transitions(t *testing.T) {
	p := newTestRedisPresence(t)
	ctx := context.Background()

	require.NoError(t, p.PresenceChanged(ctx, "alice", true, time.Now()))
	node, online, err := p.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.True(t, online)
	require.Equal(t, "node-test", node)

	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, p.PresenceChanged(ctx, "alice", false, at))
	_, online, err = p.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.False(t, online)

	seen, err := p.client.Get(ctx, lastSeenKey("alice")).Result()
	require.NoError(t, err)
	require.Equal(t, "1700000000000", seen)
}

func TestRedisPresence_RefreshExtendsTTL(t *testing.T) {
	p := newTestRedisPresence(t)
	ctx := context.Background()

	require.NoError(t, p.client.Set(ctx, presenceKey("bob"), "node-test", time.Second).Err())
	require.NoError(t, p.Refresh(ctx, []string{"bob"}))

	ttl, err := p.client.TTL(ctx, presenceKey("bob")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 30*time.Second)
}

func TestNewRedisPresence_UnreachableServer(t *testing.T) {
	_, err := NewRedisPresence(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestRedisPresence_LookupMissingKey(t *testing.T) {
	p := newTestRedisPresence(t)
	_, online, err := p.Lookup(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, online)
	require.ErrorIs(t, p.client.Get(context.Background(), presenceKey("nobody")).Err(), redis.Nil)
}
