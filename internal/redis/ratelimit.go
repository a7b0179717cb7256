package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Key pattern: ratelimit:{ip}:admin_token, expiring after Window.
type RateLimitConfig struct {
	AdminTokenLimit  int
	AdminTokenWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		AdminTokenLimit:  5,
		AdminTokenWindow: time.Minute,
	}
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RateLimiter is a fixed-window counter shared by all instances.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

var fixedWindowScript = goredis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then
		ttl = window
	end

	if current >= limit then
		return {0, 0, ttl}
	end
	redis.call('INCR', KEYS[1])
	if current == 0 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	return {1, limit - current - 1, ttl}
`)

// AllowAdminToken counts one admin token attempt from ip.
func (r *RateLimiter) AllowAdminToken(ctx context.Context, ip string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:admin_token", ip)
	return r.checkLimit(ctx, key, r.config.AdminTokenLimit, r.config.AdminTokenWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetAdminToken clears the counter for ip.
func (r *RateLimiter) ResetAdminToken(ctx context.Context, ip string) error {
	return r.client.Del(ctx, fmt.Sprintf("ratelimit:%s:admin_token", ip)).Err()
}
