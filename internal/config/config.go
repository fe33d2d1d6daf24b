// Package config loads and validates storylint configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/storylint/internal/ampcache"
	"github.com/JakeFAU/storylint/internal/httpclient"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Fetch     FetchConfig       `mapstructure:"fetch"`
	Pool      PoolConfig        `mapstructure:"pool"`
	Caches    []ampcache.Domain `mapstructure:"caches"`
	RateLimit RateLimitConfig   `mapstructure:"ratelimit"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior. Origin is the public origin of
// the service, granted to same-origin AMP requests by the CORS responder.
type ServerConfig struct {
	Port               int    `mapstructure:"port"`
	Origin             string `mapstructure:"origin"`
	LintTimeoutSeconds int    `mapstructure:"lint_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs how the story and its resources are retrieved.
type FetchConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	Headless            bool   `mapstructure:"headless"`
	HeadlessAlways      bool   `mapstructure:"headless_always"`
	HeadlessMaxParallel int    `mapstructure:"headless_max_parallel"`
	NavTimeoutSeconds   int    `mapstructure:"nav_timeout_seconds"`
}

// PoolConfig sizes the shared outbound request pool.
type PoolConfig struct {
	Size int `mapstructure:"size"`
}

// RateLimitConfig is the token bucket applied to the HTTP API.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Tracing     bool   `mapstructure:"tracing"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STORYLINT")
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
	if len(cfg.Caches) == 0 {
		cfg.Caches = ampcache.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.origin", "http://localhost:8080")
	v.SetDefault("server.lint_timeout_seconds", 60)
	v.SetDefault("fetch.user_agent", httpclient.UserAgentGooglebotMobile)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.headless", false)
	v.SetDefault("fetch.headless_always", false)
	v.SetDefault("fetch.headless_max_parallel", 1)
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("pool.size", 8)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.service_name", "storylint")
	v.SetDefault("telemetry.tracing", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be > 0")
	}
	if c.Fetch.Headless && c.Fetch.HeadlessMaxParallel <= 0 {
		return fmt.Errorf("fetch.headless_max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit values must be >= 0")
	}
	if err := ampcache.Validate(c.Caches); err != nil {
		return fmt.Errorf("caches: %w", err)
	}
	return nil
}

// FetchTimeout is the per-request budget for outbound calls.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout is the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSeconds) * time.Second
}

// LintTimeout bounds one lint request served by the API.
func (c Config) LintTimeout() time.Duration {
	return time.Duration(c.Server.LintTimeoutSeconds) * time.Second
}
