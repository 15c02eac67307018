package ratelimit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// Redis is a fixed window limiter shared by every process using the same
// Redis instance
type Redis struct {
	client redis.UniversalClient
	rule   Rule
	prefix string
}

// RedisOption customizes a Redis limiter
type RedisOption func(*Redis)

// WithPrefix namespaces the counter keys
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis returns a limiter over client
func NewRedis(client redis.UniversalClient, rule Rule, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		rule:   rule,
		prefix: "authflow:ratelimit:",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewRedisClient parses uri and returns a client with conservative pool
// and timeout settings
func NewRedisClient(ctx context.Context, uri string) (*redis.Client, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis url")
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "redis ping failed")
	}
	return client, nil
}

// Allow increments the counter of the current window
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" || !r.rule.valid() {
		return true, nil
	}

	windowKey := r.prefix + key + ":" + time.Now().Truncate(r.rule.Window).Format("20060102150405")

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, r.rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "rate limit counter failed").
			WithMetadata(map[string]any{"key": key})
	}

	return incr.Val() <= int64(r.rule.Limit), nil
}
