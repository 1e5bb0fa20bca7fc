// Package config loads server settings from .env, an optional config.yaml
// and the environment. Environment variables use the key path upper-cased
// with dots replaced by underscores, e.g. DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/workpulse/internal/calendar"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableProfiling bool          `mapstructure:"enable_profiling"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver             string   `mapstructure:"driver"`
	DSN                string   `mapstructure:"dsn"`
	DataDir            string   `mapstructure:"data_dir"`
	Seed               bool     `mapstructure:"seed"`
	DisabledProcedures []string `mapstructure:"disabled_procedures"`
	MaxOpenConns       int      `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AnalyticsConfig struct {
	Timezone    string        `mapstructure:"timezone"`
	LaunchDate  string        `mapstructure:"launch_date"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	DailyTarget int64         `mapstructure:"daily_target"`
}

type RateLimitConfig struct {
	IPPerMinute int `mapstructure:"ip_per_minute"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

var defaults = map[string]any{
	"server.port":                  "8080",
	"server.mode":                  "release",
	"server.cors_origins":          []string{"*"},
	"server.request_timeout":       "15s",
	"server.shutdown_timeout":      "30s",
	"server.enable_profiling":      false,
	"log.level":                    "info",
	"auth.jwt_secret":              "",
	"database.driver":              "sqlite3",
	"database.dsn":                 "",
	"database.data_dir":            "./data",
	"database.seed":                false,
	"database.disabled_procedures": []string{},
	"database.max_open_conns":      25,
	"redis.addr":                   "",
	"redis.password":               "",
	"redis.db":                     0,
	"redis.prefix":                 "workpulse",
	"redis.pool_size":              10,
	"redis.dial_timeout":           "5s",
	"analytics.timezone":           "Local",
	"analytics.launch_date":        calendar.DefaultLaunchDate,
	"analytics.cache_ttl":          "60s",
	"analytics.daily_target":       5000,
	"ratelimit.ip_per_minute":      120,
	"breaker.failure_threshold":    5,
	"breaker.open_timeout":         "30s",
}

// Load reads configuration from configPath/config.yaml (optional), .env and
// the environment, then validates it.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Short names kept for existing deployments.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("database.data_dir", "DATABASE_DATA_DIR", "DATA_DIR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("analytics.timezone: %w", err)
	}
	if _, err := c.Launch(); err != nil {
		return fmt.Errorf("analytics.launch_date: %w", err)
	}
	if c.Analytics.CacheTTL <= 0 {
		return fmt.Errorf("analytics.cache_ttl must be positive")
	}
	if c.Analytics.DailyTarget <= 0 {
		return fmt.Errorf("analytics.daily_target must be positive")
	}
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "pgx" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for pgx")
	}
	if c.Server.Mode == "release" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in release mode")
	}
	if c.RateLimit.IPPerMinute <= 0 {
		return fmt.Errorf("ratelimit.ip_per_minute must be positive")
	}
	return nil
}

// Location resolves analytics.timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Analytics.Timezone == "" || c.Analytics.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Analytics.Timezone)
}

// Launch parses analytics.launch_date.
func (c *Config) Launch() (time.Time, error) {
	return time.Parse(calendar.DateLayout, c.Analytics.LaunchDate)
}
