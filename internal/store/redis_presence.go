package store

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis presence mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	NodeID   string
	TTL      time.Duration
}

// RedisPresence mirrors presence into Redis so other services can see who is online:
//
//	chat:presence:<user>  = node id, expires after TTL
//	chat:lastseen:<user>  = unix millis of the last offline transition
type RedisPresence struct {
	client *redis.Client
	nodeID string
	ttl    time.Duration
}

// NewRedisPresence connects and pings Redis.
func NewRedisPresence(ctx context.Context, cfg RedisConfig) (*RedisPresence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", cfg.Addr)
	}
	return NewRedisPresenceWithClient(client, cfg.NodeID, cfg.TTL), nil
}

// NewRedisPresenceWithClient wraps an existing client.
func NewRedisPresenceWithClient(client *redis.Client, nodeID string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{client: client, nodeID: nodeID, ttl: ttl}
}

func presenceKey(user string) string { return "chat:presence:" + user }
func lastSeenKey(user string) string { return "chat:lastseen:" + user }

func (r *RedisPresence) PresenceChanged(ctx context.Context, userID string, online bool, at time.Time) error {
	if online {
		return r.client.Set(ctx, presenceKey(userID), r.nodeID, r.ttl).Err()
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.Set(ctx, lastSeenKey(userID), strconv.FormatInt(at.UnixMilli(), 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Refresh renews the TTL of every online user's key; call it once per heartbeat.
func (r *RedisPresence) Refresh(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, id := range userIDs {
		pipe.Set(ctx, presenceKey(id), r.nodeID, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Lookup reports whether user is marked online and on which node.
func (r *RedisPresence) Lookup(ctx context.Context, userID string) (string, bool, error) {
	val, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisPresence) Close() error {
	return r.client.Close()
}

var _ PresenceSink = (*RedisPresence)(nil)
