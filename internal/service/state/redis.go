package state

import (
	"context"
	"fmt"
	"time"

	domrepo "SignalGate/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisConfig mirrors the redis section of the config file.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// RedisStore shares admission state across instances. Every mutating primitive
// is a single server-side operation (SETNX or one Lua script), so two
// instances racing on the same symbol still serialize inside Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ domrepo.StateStore = (*RedisStore)(nil)

// tokenBucketScript refills by elapsed wall time and takes one token, all in
// one atomic unit. Millisecond clock so sub-second refill rates accrue.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local bucket = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(bucket[1])
local last_ms = tonumber(bucket[2])
if tokens == nil then tokens = capacity end
if last_ms == nil then last_ms = now_ms end
local delta = math.max(0, now_ms - last_ms) / 1000.0
tokens = math.min(capacity, tokens + delta * refill_rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HMSET', key, 'tokens', tokens, 'last_ms', now_ms)
redis.call('EXPIRE', key, ttl)
return allowed
`)

// NewRedisStore connects and pings; a store that cannot reach Redis at boot is
// a config problem, not something to discover on the first admission.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "signalgate"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

func (s *RedisStore) TryAcquireCooldown(ctx context.Context, symbol string, d time.Duration) (bool, error) {
	if d <= 0 {
		return true, nil
	}
	ok, err := s.client.SetNX(ctx, s.cooldownKey(symbol), 1, d).Result()
	if err != nil {
		return false, s.unavailable("cooldown setnx", err)
	}
	return ok, nil
}

func (s *RedisStore) ForceCooldown(ctx context.Context, symbol string, d time.Duration) error {
	if err := s.client.Set(ctx, s.cooldownKey(symbol), 1, d).Err(); err != nil {
		return s.unavailable("cooldown set", err)
	}
	return nil
}

func (s *RedisStore) ClearCooldown(ctx context.Context, symbol string) error {
	if err := s.client.Del(ctx, s.cooldownKey(symbol)).Err(); err != nil {
		return s.unavailable("cooldown del", err)
	}
	return nil
}

func (s *RedisStore) CooldownRemaining(ctx context.Context, symbol string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, s.cooldownKey(symbol)).Result()
	if err != nil {
		return 0, s.unavailable("cooldown pttl", err)
	}
	if d < 0 { // no key or no expiry
		return 0, nil
	}
	return d, nil
}

func (s *RedisStore) TryConsumeToken(ctx context.Context, key string, capacity, refillPerSec float64) (bool, error) {
	// Keep the bucket around at least twice as long as a full refill takes.
	ttl := 60
	if refillPerSec > 0 {
		if t := int(2 * capacity / refillPerSec); t > ttl {
			ttl = t
		}
	}
	now := time.Now().UnixMilli()
	allowed, err := tokenBucketScript.Run(ctx, s.client, []string{s.bucketKey(key)}, capacity, refillPerSec, now, ttl).Int64()
	if err != nil {
		return false, s.unavailable("token bucket", err)
	}
	return allowed == 1, nil
}

func (s *RedisStore) TripBreaker(ctx context.Context) error {
	if err := s.client.Set(ctx, s.breakerKey(), 1, 0).Err(); err != nil {
		return s.unavailable("breaker set", err)
	}
	return nil
}

func (s *RedisStore) ResetBreaker(ctx context.Context) error {
	if err := s.client.Del(ctx, s.breakerKey()).Err(); err != nil {
		return s.unavailable("breaker del", err)
	}
	return nil
}

func (s *RedisStore) BreakerTripped(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.breakerKey()).Result()
	if err != nil {
		return false, s.unavailable("breaker exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) cooldownKey(symbol string) string {
	return fmt.Sprintf("%s:cooldown:%s", s.prefix, symbol)
}

func (s *RedisStore) bucketKey(key string) string {
	return fmt.Sprintf("%s:bucket:%s", s.prefix, key)
}

func (s *RedisStore) breakerKey() string {
	return s.prefix + ":breaker"
}

func (s *RedisStore) unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domrepo.ErrStateUnavailable, op, err)
}
