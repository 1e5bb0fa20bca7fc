// @title           workpulse API
// @version         1.0
// @description     Productivity dashboard analytics and leaderboards.
// @BasePath        /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/workpulse/internal/aggregate"
	"github.com/ZanzyTHEbar/workpulse/internal/analytics"
	"github.com/ZanzyTHEbar/workpulse/internal/api"
	"github.com/ZanzyTHEbar/workpulse/internal/auth"
	"github.com/ZanzyTHEbar/workpulse/internal/cache"
	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
	"github.com/ZanzyTHEbar/workpulse/internal/config"
	"github.com/ZanzyTHEbar/workpulse/internal/datastore"
	apperrors "github.com/ZanzyTHEbar/workpulse/internal/errors"
	"github.com/ZanzyTHEbar/workpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/workpulse/internal/ratelimit"
	"github.com/ZanzyTHEbar/workpulse/internal/redisconn"
	"github.com/ZanzyTHEbar/workpulse/internal/resilience"
	"github.com/ZanzyTHEbar/workpulse/internal/security"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(os.Stdout, monitoring.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.Server.Mode)

	// Validate has already accepted both.
	loc, _ := cfg.Location()
	launch, _ := cfg.Launch()
	clock := quartz.NewReal()
	cal := calendar.New(loc, launch)

	db, err := datastore.Open(datastore.Config{
		Driver:       datastore.Dialect(cfg.Database.Driver),
		DSN:          cfg.Database.DSN,
		DataDir:      cfg.Database.DataDir,
		Disabled:     cfg.Database.DisabledProcedures,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       logger.Logger,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer apperrors.SafeClose(db, "database")

	if cfg.Database.Seed {
		if err := db.Seed(context.Background(), cal.At(clock.Now()).Day()); err != nil {
			slog.Error("Failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	breakers := resilience.DefaultBreakerConfig()
	breakers.FailureThreshold = cfg.Breaker.FailureThreshold
	breakers.OpenTimeout = cfg.Breaker.OpenTimeout
	guard := resilience.NewGuard(db, breakers, resilience.DefaultRetryConfig(), logger.Logger)

	// A failed ping leaves the connection disabled; both consumers fall back
	// to process memory.
	redisConn, err := redisconn.Dial(context.Background(), cfg.Redis, logger.Logger)
	if err != nil {
		slog.Warn("Continuing without Redis", "error", err)
	}
	defer apperrors.SafeClose(redisConn, "redis")

	var results interface {
		cache.Store
		api.StatsReporter
	} = cache.NewMemory(cfg.Analytics.CacheTTL, clock)
	if redisConn.Enabled() {
		results = cache.NewRedis(redisConn.Client(), redisConn.Key("cache", ""), cfg.Analytics.CacheTTL, clock, logger.Logger)
	}

	svc := analytics.NewService(analytics.Options{
		Calendar:    cal,
		Resolver:    aggregate.NewResolver(guard, logger),
		Cache:       results,
		Clock:       clock,
		DailyTarget: cfg.Analytics.DailyTarget,
		Logger:      logger,
	})

	sec := security.DefaultConfig()
	sec.RequestTimeout = cfg.Server.RequestTimeout

	router := api.NewRouter(api.Deps{
		Analytics:       svc,
		Directory:       guard,
		Roles:           db,
		Auth:            auth.NewAuthenticator(cfg.Auth.JWTSecret, clock),
		Limiter:         ratelimit.NewRateLimiter(redisConn, ratelimit.Config{IPLimitPerMin: cfg.RateLimit.IPPerMinute}),
		Store:           db,
		Breakers:        guard,
		Cache:           results,
		Redis:           redisConn,
		Logger:          logger,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Security:        sec,
		EnableProfiling: cfg.Server.EnableProfiling,
		Version:         version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Server.Port,
			"driver", cfg.Database.Driver,
			"timezone", loc.String(),
			"launch_date", cfg.Analytics.LaunchDate,
			"redis", redisConn.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
