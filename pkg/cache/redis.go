package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisConfig struct {
	addr     string
	password string
	db       int
	poolSize int
	minIdle  int
	prefix   string
}

type RedisOption func(*redisConfig)

// WithAddr sets the host:port of the Redis server.
func WithAddr(addr string) RedisOption {
	return func(c *redisConfig) { c.addr = addr }
}

func WithPassword(password string) RedisOption {
	return func(c *redisConfig) { c.password = password }
}

func WithDB(db int) RedisOption {
	return func(c *redisConfig) { c.db = db }
}

// WithPool sizes the connection pool and its idle floor.
func WithPool(size, minIdle int) RedisOption {
	return func(c *redisConfig) {
		if size > 0 {
			c.poolSize = size
		}
		if minIdle >= 0 {
			c.minIdle = minIdle
		}
	}
}

// WithPrefix namespaces every key written by this store, so several
// deployments can share one Redis instance.
func WithPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// Redis is a Store backed by a shared Redis instance. All replicas of the
// service see the same entries, so a quote fetched by one replica saves
// the upstream call for the others.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(opts ...RedisOption) (*Redis, error) {
	cfg := redisConfig{
		addr:     "localhost:6379",
		poolSize: 10,
		minIdle:  2,
		prefix:   "signalgate",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.addr,
		Password:     cfg.password,
		DB:           cfg.db,
		PoolSize:     cfg.poolSize,
		MinIdleConns: cfg.minIdle,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache ping: %w", err)
	}

	return &Redis{client: client, prefix: cfg.prefix}, nil
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis cache get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.key(key)
	}
	if err := r.client.Unlink(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis cache exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
