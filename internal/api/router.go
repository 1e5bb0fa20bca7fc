// Package api exposes the dashboard over HTTP.
package api

import (
	"context"
	"net/http/pprof"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/workpulse/internal/analytics"
	"github.com/ZanzyTHEbar/workpulse/internal/auth"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	apperrors "github.com/ZanzyTHEbar/workpulse/internal/errors"
	"github.com/ZanzyTHEbar/workpulse/internal/middleware"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/ratelimit"
	"github.com/ZanzyTHEbar/workpulse/internal/security"

	_ "github.com/ZanzyTHEbar/workpulse/docs"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BreakerReporter lists circuit breaker states by procedure.
type BreakerReporter interface {
	States() map[string]string
}

// StatsReporter contributes a section to /health.
type StatsReporter interface {
	Stats() map[string]interface{}
}

// RedisReporter is the shared Redis connection as /health sees it.
type RedisReporter interface {
	StatsReporter
	Enabled() bool
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Analytics *analytics.Service
	Directory datastore.Directory
	Roles     datastore.RoleWriter
	Auth      *auth.Authenticator
	Limiter   *ratelimit.RateLimiter
	Store     Pinger
	Breakers  BreakerReporter
	Cache     StatsReporter
	Redis     RedisReporter
	Logger    *monitoring.Logger

	CORSOrigins     []string
	Security        security.Config
	EnableProfiling bool
	Version         string
}

// NewRouter builds the engine. Callers choose the gin mode beforehand.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = &monitoring.Logger{Logger: monitoring.Discard()}
	}

	r := gin.New()
	r.Use(monitoring.MonitoringMiddleware(d.Logger))
	r.Use(apperrors.RecoveryHandler())
	r.Use(apperrors.ErrorHandler())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/health", healthHandler(d))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if d.EnableProfiling {
		d.Logger.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	h := &Handler{svc: d.Analytics, dir: d.Directory, roles: d.Roles, logger: d.Logger}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()).Handler())
	v1.Use(security.Headers(d.Security))
	if d.Limiter != nil {
		v1.Use(d.Limiter.IPRateLimitMiddleware())
	}
	v1.Use(security.RequestTimeout(d.Security))
	v1.Use(d.Auth.Middleware())
	{
		v1.GET("/tasks-info", h.TasksInfo)
		v1.GET("/leaderboard", h.Leaderboard)
		v1.GET("/user-graph", h.UserGraph)
		v1.GET("/emails-remaining", h.EmailsRemaining)
		v1.GET("/user-info", h.UserInfo)
		if d.Roles != nil {
			v1.POST("/role", h.UpdateRole)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", monitoring.RequestIDHeader)
	cfg.ExposeHeaders = []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
