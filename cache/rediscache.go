package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shortenlabs/shortener/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisConfig configures the network cache client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // prepended to every key
	PoolSize int
}

// redisCache is the network-backed Cache implementation.
type redisCache struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

// NewRedis dials the configured redis instance. The connection itself is
// lazy (go-redis connects on first command); callers should still Ping
// during startup to fail fast on a bad config.
func NewRedis(cfg RedisConfig, logger *zap.SugaredLogger) Cache {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})
	return &redisCache{client: client, prefix: cfg.Prefix, log: logger}
}

// Ping round-trips the connection; used by startup validation and the
// /health handler, not part of the Cache interface itself.
func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) key(code string) string { return c.prefix + code }

// Get never surfaces an error to the caller: a cache IO failure or a
// decode failure are both logged at warn and treated as a miss.
func (c *redisCache) Get(ctx context.Context, code string) (cmn.Link, bool) {
	raw, err := c.client.Get(ctx, c.key(code)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warnw("cache get failed, treating as miss", "code", code, "error", err)
		}
		return cmn.Link{}, false
	}
	var l cmn.Link
	if err := json.Unmarshal(raw, &l); err != nil {
		c.log.Warnw("cache value decode failed, treating as miss", "code", code, "error", err)
		return cmn.Link{}, false
	}
	return l, true
}

func (c *redisCache) Set(ctx context.Context, code string, link cmn.Link, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(link)
	if err != nil {
		c.log.Warnw("cache value encode failed, skipping set", "code", code, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(code), raw, ttl).Err(); err != nil {
		c.log.Warnw("cache set failed", "code", code, "error", err)
	}
}

func (c *redisCache) Del(ctx context.Context, code string) {
	if err := c.client.Del(ctx, c.key(code)).Err(); err != nil {
		c.log.Warnw("cache del failed", "code", code, "error", err)
	}
}

func (c *redisCache) Close() error { return c.client.Close() }
