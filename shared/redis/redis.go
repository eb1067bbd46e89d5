package redis

import (
	"context"
	"encoding/json"
	"time"

	"alertnet/backend/chat/models"
	"alertnet/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Options configures the redis-backed history cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RoomCache keeps the most recent page of each room's history in redis so
// the common "open a conversation" read skips postgres. The cache is an
// optimization only: misses and redis outages fall through to the store.
type RoomCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRoomCache(opts Options, log *logger.Logger) *RoomCache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RoomCache{
		client: client,
		ttl:    opts.TTL,
		log:    log,
	}
}

func cacheKey(roomKey string) string {
	return "chat:recent:" + roomKey
}

// Recent returns the cached recent page for a room, if present.
func (c *RoomCache) Recent(ctx context.Context, roomKey string) ([]models.Message, bool) {
	raw, err := c.client.Get(ctx, cacheKey(roomKey)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("history cache read failed", "room_key", roomKey, "error", err.Error())
		}
		return nil, false
	}

	var messages []models.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		c.log.Warn("discarding corrupt cache entry", "room_key", roomKey)
		c.client.Del(ctx, cacheKey(roomKey))
		return nil, false
	}
	return messages, true
}

// StoreRecent caches a room's recent page.
func (c *RoomCache) StoreRecent(ctx context.Context, roomKey string, messages []models.Message) {
	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(roomKey), raw, c.ttl).Err(); err != nil {
		c.log.Warn("history cache write failed", "room_key", roomKey, "error", err.Error())
	}
}

// Invalidate drops a room's cached page; called after every append.
func (c *RoomCache) Invalidate(ctx context.Context, roomKey string) {
	if err := c.client.Del(ctx, cacheKey(roomKey)).Err(); err != nil {
		c.log.Warn("history cache invalidation failed", "room_key", roomKey, "error", err.Error())
	}
}

// Ping reports whether redis is reachable; used by the health checker.
func (c *RoomCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RoomCache) Close() error {
	return c.client.Close()
}
