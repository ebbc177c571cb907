// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// PoolConfig governs worker pool sizing.
type PoolConfig struct {
	MaxInstances int `mapstructure:"max_instances"`
	QueueDepth   int `mapstructure:"queue_depth"`
}

// RetryConfig tunes the transient-failure retry policy.
type RetryConfig struct {
	MaxRetries    int `mapstructure:"max_retries"`
	BackoffBaseMs int `mapstructure:"backoff_base_ms"`
	BackoffMaxMs  int `mapstructure:"backoff_max_ms"`
}

// BrowserConfig configures the headless browser engines.
type BrowserConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
	UserAgent     string  `mapstructure:"user_agent"`
}

// HTTPConfig configures the plain-HTTP engine.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	UserAgent      string `mapstructure:"user_agent"`
}

// DBConfig controls the optional Postgres result store. An empty DSN keeps
// results in memory only.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ProgressConfig tunes the event hub buffering.
type ProgressConfig struct {
	Buffer  int `mapstructure:"buffer"`
	Batch   int `mapstructure:"batch"`
	FlushMs int `mapstructure:"flush_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("pool.max_instances", 5)
	v.SetDefault("pool.queue_depth", 0)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.backoff_base_ms", 2000)
	v.SetDefault("retry.backoff_max_ms", 10000)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.domain_qps", 0)
	v.SetDefault("browser.user_agent", "webharvest/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_parallel", 8)
	v.SetDefault("http.user_agent", "webharvest/0.1")
	v.SetDefault("progress.buffer", 1024)
	v.SetDefault("progress.batch", 256)
	v.SetDefault("progress.flush_ms", 250)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pool.MaxInstances <= 0 {
		return fmt.Errorf("pool.max_instances must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Browser.Enabled && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 when the browser engine is enabled")
	}
	return nil
}

// BackoffBase converts the retry base delay to a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Retry.BackoffBaseMs) * time.Millisecond
}

// BackoffMax converts the retry delay cap to a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Retry.BackoffMaxMs) * time.Millisecond
}

// HTTPTimeout converts the plain-HTTP request timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout converts the browser navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}
