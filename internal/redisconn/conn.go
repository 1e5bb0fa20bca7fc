// Package redisconn owns the optional Redis connection shared by the
// leaderboard cache and the rate limiter. Every method is safe on a disabled
// or nil Conn so callers can fall back to process memory.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/workpulse/internal/config"
)

const (
	defaultPrefix      = "workpulse"
	defaultPoolSize    = 10
	defaultDialTimeout = 5 * time.Second
)

// ErrDisabled is reported by Ping when no server is configured or reachable.
var ErrDisabled = errors.New("redis is disabled")

// Conn is a pinged client plus the key namespace every consumer writes under.
type Conn struct {
	client *redis.Client
	addr   string
	prefix string
}

// Dial connects when cfg.Addr is set. An empty address is not an error; a
// failed ping returns a disabled Conn together with the cause.
func Dial(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(cfg.Prefix, ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	conn := &Conn{addr: cfg.Addr, prefix: prefix}

	if cfg.Addr == "" {
		logger.Warn("Redis address not configured, leaderboard cache and rate limits stay in memory")
		return conn, nil
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error("Redis ping failed, leaderboard cache and rate limits stay in memory", "addr", cfg.Addr, "error", err)
		return conn, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info("Redis connected", "addr", cfg.Addr, "db", cfg.DB, "prefix", prefix)
	conn.client = client
	return conn, nil
}

// Enabled reports whether a live client is held.
func (c *Conn) Enabled() bool {
	return c != nil && c.client != nil
}

// Client returns the underlying client, nil when disabled.
func (c *Conn) Client() *redis.Client {
	if !c.Enabled() {
		return nil
	}
	return c.client
}

// Key joins parts under the configured prefix, e.g. "workpulse:cache:".
func (c *Conn) Key(parts ...string) string {
	prefix := defaultPrefix
	if c != nil && c.prefix != "" {
		prefix = c.prefix
	}
	return strings.Join(append([]string{prefix}, parts...), ":")
}

// Ping checks the live connection.
func (c *Conn) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	return c.client.Ping(ctx).Err()
}

// Stats summarises the connection pool for health output.
func (c *Conn) Stats() map[string]interface{} {
	if !c.Enabled() {
		return map[string]interface{}{"enabled": false}
	}
	pool := c.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        c.addr,
		"prefix":      c.prefix,
		"hits":        pool.Hits,
		"misses":      pool.Misses,
		"timeouts":    pool.Timeouts,
		"total_conns": pool.TotalConns,
		"idle_conns":  pool.IdleConns,
	}
}

// Close releases the client. Closing a disabled Conn is a no-op.
func (c *Conn) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
