package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"meetapp/internal/model"
)

// Client caches meetup listing pages in Redis for a short TTL. A cache
// failure is never fatal: reads degrade to a miss, writes are dropped.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
	log *zerolog.Logger
}

func New(addr, password string, db int, ttl time.Duration, log *zerolog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb, ttl: ttl, log: log}, nil
}

func (c *Client) GetMeetups(ctx context.Context, key string) ([]model.Meetup, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}

	var meetups []model.Meetup
	if err := json.Unmarshal(raw, &meetups); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupted")
		return nil, false
	}
	return meetups, true
}

func (c *Client) SetMeetups(ctx context.Context, key string, meetups []model.Meetup) {
	raw, err := json.Marshal(meetups)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to marshal cache entry")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// InvalidateMeetups drops all cached listing pages after a meetup write.
func (c *Client) InvalidateMeetups(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, "meetups:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", iter.Val()).Msg("cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("cache scan failed")
	}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
