package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultConnectAttempts = 30
	DefaultConnectDelay    = 2 * time.Second

	scanBatch = 100
)

// RedisService is the Redis-backed Cache. Its client is shared with the
// event broadcaster.
type RedisService struct {
	client *redis.Client
	logger *slog.Logger

	attempts int
	delay    time.Duration
}

var _ Cache = (*RedisService)(nil)

// NewRedisService connects to redisURL, which may be a redis:// URL or a
// bare host:port address.
func NewRedisService(redisURL string, logger *slog.Logger) (*RedisService, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisService{
		client:   redis.NewClient(opts),
		logger:   logger,
		attempts: DefaultConnectAttempts,
		delay:    DefaultConnectDelay,
	}, nil
}

// WithRetry sets how WaitForConnection retries.
func (r *RedisService) WithRetry(attempts int, delay time.Duration) *RedisService {
	if attempts > 0 {
		r.attempts = attempts
	}
	if delay > 0 {
		r.delay = delay
	}
	return r
}

func parseRedisURL(redisURL string) (*redis.Options, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: redisURL}, nil
}

func (r *RedisService) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisService) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("Redis SET failed", "key", key, "error", err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.Debug("Redis SET successful", "key", key, "bytes", len(value), "ttl", ttl)
	return nil
}

func (r *RedisService) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		r.logger.Error("Redis GET failed", "key", key, "error", err)
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (r *RedisService) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisService) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

func (r *RedisService) GetClient() *redis.Client {
	return r.client
}

// WaitForConnection pings until Redis answers, ctx ends, or the retry
// budget runs out.
func (r *RedisService) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(r.delay)
	defer ticker.Stop()

	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.Ping(ctx); err == nil {
			r.logger.Info("Redis connection established", "attempt", attempt)
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return fmt.Errorf("redis did not become available after %d attempts: %w", r.attempts, err)
}
