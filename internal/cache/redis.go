package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
)

// retention lets Redis reclaim abandoned keys. Freshness is still decided at
// read time against the TTL.
const retention = 10

// envelope is the value stored under each key.
type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Redis is a Store shared by every process pointed at the same server.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	clock  quartz.Clock
	logger *slog.Logger
}

// NewRedis wraps a connected client. Keys are namespaced by prefix.
func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration, clock quartz.Clock, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, clock: clock, logger: logger}
}

// Get treats any Redis failure as a miss so the caller recomputes.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("Discarding malformed cache entry", "key", key, "error", err)
		return nil, false
	}

	entry := Entry{Payload: env.Payload, StoredAt: env.StoredAt}
	if !entry.Fresh(r.clock.Now(), r.ttl) {
		return nil, false
	}
	return entry.Payload, true
}

// Set overwrites the key. Failures are logged; the cache is best effort.
func (r *Redis) Set(ctx context.Context, key string, payload []byte) {
	raw, err := json.Marshal(envelope{StoredAt: r.clock.Now(), Payload: payload})
	if err != nil {
		r.logger.Warn("Cache payload is not JSON", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl*retention).Err(); err != nil {
		r.logger.Warn("Redis cache write failed", "key", key, "error", err)
	}
}

// Stats describes the backend for health output. Entry counts live in Redis
// and are not scanned.
func (r *Redis) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "redis",
		"prefix":      r.prefix,
		"ttl_seconds": r.ttl.Seconds(),
	}
}
