package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "weather:"

// RedisOptions configures the Redis backend. URL takes precedence over Addr.
type RedisOptions struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is a cache backed by Redis. Keys are namespaced with a prefix.
type Redis struct {
	client *goredis.Client
	prefix string
}

// NewRedis creates a Redis cache from opts. It does not connect; call Ping.
func NewRedis(opts RedisOptions) (*Redis, error) {
	var clientOpts *goredis.Options
	if opts.URL != "" {
		parsed, err := goredis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		clientOpts = parsed
	} else {
		clientOpts = &goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}
	return NewRedisFromClient(goredis.NewClient(clientOpts), opts.Prefix), nil
}

// NewRedisFromClient wraps an existing client (useful for testing).
func NewRedisFromClient(client *goredis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Ping checks connectivity to the Redis server.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
