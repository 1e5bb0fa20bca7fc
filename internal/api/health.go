package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// healthHandler reports store reachability, breaker states and the shared
// cache and limiter backends. An open breaker or a lost Redis degrades the
// service but fallbacks still answer, so only an unreachable store fails the
// check.
func healthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   d.Version,
		}

		if d.Breakers != nil {
			states := d.Breakers.States()
			response["circuit_breakers"] = states
			for _, state := range states {
				if state != "closed" {
					response["status"] = "degraded"
				}
			}
		}

		if d.Cache != nil {
			response["cache"] = d.Cache.Stats()
		}
		if d.Limiter != nil {
			response["rate_limiter"] = d.Limiter.Stats()
		}

		if d.Redis != nil && d.Redis.Enabled() {
			redisStatus := d.Redis.Stats()
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			err := d.Redis.Ping(ctx)
			cancel()
			if err != nil {
				d.Logger.Warn("Redis health check failed", "error", err)
				redisStatus["status"] = "unreachable"
				response["status"] = "degraded"
			} else {
				redisStatus["status"] = "ok"
			}
			response["redis"] = redisStatus
		}

		if d.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			defer cancel()
			if err := d.Store.PingContext(ctx); err != nil {
				d.Logger.Error("Store health check failed", "error", err)
				response["status"] = "unavailable"
				response["store"] = "unreachable"
				c.JSON(http.StatusServiceUnavailable, response)
				return
			}
			response["store"] = "ok"
			if pool, ok := d.Store.(interface{ GetPoolStats() map[string]interface{} }); ok {
				response["store_pool"] = pool.GetPoolStats()
			}
		}

		c.JSON(http.StatusOK, response)
	}
}
