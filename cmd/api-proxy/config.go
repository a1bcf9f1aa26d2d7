package main

import (
	"fmt"
	"time"

	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/Sternrassler/vrc-api-client/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment variable, e.g. API_PROXY_PORT.
const envPrefix = "API_PROXY"

// proxyConfig is the resolved shell configuration.
type proxyConfig struct {
	Port            int
	BaseURL         string
	UserAgent       string
	LogLevel        string
	LogPretty       bool
	SnapshotPath    string
	RedisURL        string
	SnapshotKey     string
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
}

// newViper returns a viper instance reading API_PROXY_* variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("base_url", client.DefaultBaseURL)
	v.SetDefault("user_agent", "vrc-api-proxy/0.1.0")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("snapshot_path", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("snapshot_key", cache.DefaultSnapshotKey)
	v.SetDefault("cleanup_interval", cache.DefaultCleanupInterval)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	return v
}

func loadConfig(v *viper.Viper) (proxyConfig, error) {
	cfg := proxyConfig{
		Port:            v.GetInt("port"),
		BaseURL:         v.GetString("base_url"),
		UserAgent:       v.GetString("user_agent"),
		LogLevel:        v.GetString("log_level"),
		LogPretty:       v.GetBool("log_pretty"),
		SnapshotPath:    v.GetString("snapshot_path"),
		RedisURL:        v.GetString("redis_url"),
		SnapshotKey:     v.GetString("snapshot_key"),
		CleanupInterval: v.GetDuration("cleanup_interval"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.UserAgent == "" {
		return cfg, fmt.Errorf("user agent is required (set %s_USER_AGENT)", envPrefix)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cache.DefaultCleanupInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg, nil
}

// openSnapshotStore picks Redis when REDIS_URL is set, a file when
// SNAPSHOT_PATH is set, and no persistence otherwise. The returned close
// function is never nil.
func openSnapshotStore(cfg proxyConfig) (cache.SnapshotStore, func() error, error) {
	noop := func() error { return nil }

	switch {
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		return cache.NewRedisStore(rdb, cfg.SnapshotKey, 0), rdb.Close, nil
	case cfg.SnapshotPath != "":
		return cache.NewFileStore(cfg.SnapshotPath), noop, nil
	default:
		return nil, noop, nil
	}
}
