package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/redisconn"
)

// maxFallbackLimiters bounds the in-memory limiter map.
const maxFallbackLimiters = 10000

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin int
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{IPLimitPerMin: 120}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter limits requests through Redis when it is reachable and an
// in-memory token bucket otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	conn         *redisconn.Conn
	config       Config

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.Mutex
}

// NewRateLimiter limits through conn when it is enabled. A nil or disabled
// conn keeps every bucket in memory.
func NewRateLimiter(conn *redisconn.Conn, config Config) *RateLimiter {
	if config.IPLimitPerMin <= 0 {
		config = DefaultConfig()
	}

	rl := &RateLimiter{
		conn:             conn,
		config:           config,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if conn.Enabled() {
		rl.redisLimiter = redis_rate.NewLimiter(conn.Client())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	return rl
}

// AllowIP checks if an IP address is allowed to make a request (per-minute limit)
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) *Result {
	key := rl.conn.Key("ratelimit", "ip", ip)
	return rl.allow(ctx, key, rl.config.IPLimitPerMin, time.Minute)
}

func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) *Result {
	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err == nil {
			return result
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
	}
	return rl.allowFallback(key, limit, period)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	result := &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}
	if !result.Allowed {
		monitoring.RecordRateLimited("redis")
	}
	return result, nil
}

// allowFallback performs rate limiting using in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		if len(rl.fallbackLimiters) >= maxFallbackLimiters {
			slog.Info("Resetting fallback rate limiters", "count", len(rl.fallbackLimiters))
			rl.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(float64(limit)/period.Seconds()), limit)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	now := time.Now()
	allowed := limiter.AllowN(now, 1)

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(period),
	}
	if !allowed {
		result.RetryAfter = time.Duration(float64(time.Second) / float64(limiter.Limit()))
		monitoring.RecordRateLimited("memory")
	}
	return result
}

// Stats reports which backend is limiting and how many in-memory buckets
// exist, for health output.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	backend := "memory"
	if rl.redisLimiter != nil {
		backend = "redis"
	}
	return map[string]interface{}{
		"backend":           backend,
		"fallback_limiters": fallbackCount,
		"ip_per_minute":     rl.config.IPLimitPerMin,
	}
}
