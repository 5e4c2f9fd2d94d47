package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	seq    atomic.Uint64
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "eastmoney", "sina")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

func (r *RateLimiter) key(cfg RateLimitConfig) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// allowScript trims the window, then admits the request if the window has room.
// Members are unique per call so concurrent requests in one millisecond all count.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		// Redis 비활성: 로컬 리미터만 적용
		return true, cfg.Limit, nil
	}

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%d", now, r.seq.Add(1))

	result, err := allowScript.Run(ctx, r.client.rdb, []string{r.key(cfg)},
		now,
		now-cfg.Window.Milliseconds(),
		cfg.Limit,
		cfg.Window.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	return result[0] == 1, int(result[1]), nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.retryInterval()):
		}
	}
}

// retryInterval is one slot of the window, at least 10ms
func (cfg RateLimitConfig) retryInterval() time.Duration {
	if cfg.Limit <= 0 {
		return cfg.Window
	}
	d := cfg.Window / time.Duration(cfg.Limit)
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

// Predefined rate limit configs for upstream market data
var (
	// Eastmoney kline: 초당 20회 (보수적, 여러 프로세스 공유)
	EastmoneyRateLimit = RateLimitConfig{
		Key:    "eastmoney",
		Limit:  20,
		Window: time.Second,
	}

	// Sina stock list pages: 초당 2회
	SinaRateLimit = RateLimitConfig{
		Key:    "sina",
		Limit:  2,
		Window: time.Second,
	}
)
