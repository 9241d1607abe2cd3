// Package gatewaycfg defines the edge gateway's configuration: downstream
// service URLs, JWT secret, rate-limit and circuit-breaker tuning, and CORS
// policy. Loaded with viper, driven primarily by the environment-variable
// names spec.md
// §6 calls out (GATEWAY_HOST, JWT_SECRET, REDIS_URL, ...).
package gatewaycfg

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway binary's full configuration.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	JWTSecret string `mapstructure:"jwt_secret"`
	RedisURL  string `mapstructure:"redis_url"`

	UserServiceURL       string `mapstructure:"user_service_url"`
	TradingServiceURL    string `mapstructure:"trading_service_url"`
	MarketDataServiceURL string `mapstructure:"market_data_service_url"`

	APIPrefix       string        `mapstructure:"api_prefix"`
	PublicPaths     []string      `mapstructure:"public_paths"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	CORS      CORSConfig      `mapstructure:"cors"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// RateLimitConfig selects and tunes one of the three admission algorithms
// in internal/ratelimit.
type RateLimitConfig struct {
	Algorithm         string        `mapstructure:"algorithm"` // "token_bucket", "sliding_window", "fixed_window"
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
	BurstSize         int64         `mapstructure:"burst_size"`
	Window            time.Duration `mapstructure:"window"`
	Whitelist         []string      `mapstructure:"whitelist"`
}

// BreakerConfig tunes every per-downstream circuit breaker the proxy opens.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

// CORSConfig controls the gateway's own preflight handling (spec.md §6).
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings lists every environment variable name spec.md §6 names,
// mapped to its mapstructure key, so Load works from environment alone
// (no config file required) the way a container-deployed gateway expects.
var envBindings = map[string]string{
	"host":                     "GATEWAY_HOST",
	"port":                     "GATEWAY_PORT",
	"jwt_secret":               "JWT_SECRET",
	"redis_url":                "REDIS_URL",
	"user_service_url":         "USER_SERVICE_URL",
	"trading_service_url":      "TRADING_SERVICE_URL",
	"market_data_service_url":  "MARKET_DATA_SERVICE_URL",
}

// Load reads configuration from an optional file at path (skipped if path is
// empty; a named file that cannot be read is an error) layered under
// environment variables, which always win.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile("")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("gatewaycfg: bind env %s: %w", env, err)
		}
	}

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("api_prefix", "/api")
	v.SetDefault("public_paths", []string{"/health", "/api/auth/*"})
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("rate_limit.algorithm", "sliding_window")
	v.SetDefault("rate_limit.requests_per_minute", 600.0)
	v.SetDefault("rate_limit.burst_size", 20)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_max_calls", 3)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("gatewaycfg: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("gatewaycfg: unmarshal config: %w", err)
	}
	return &cfg, nil
}

const defaultJWTSecret = "changeme"

// Validate enforces spec.md §6's "JWT_SECRET must be set and non-default;
// missing required values are a startup error."
func (c *Config) Validate() error {
	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("gatewaycfg: jwt_secret is required and must not be the default value (set JWT_SECRET)")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("gatewaycfg: redis_url is required (set REDIS_URL)")
	}
	if c.UserServiceURL == "" {
		return fmt.Errorf("gatewaycfg: user_service_url is required (set USER_SERVICE_URL)")
	}
	if c.TradingServiceURL == "" {
		return fmt.Errorf("gatewaycfg: trading_service_url is required (set TRADING_SERVICE_URL)")
	}
	if c.MarketDataServiceURL == "" {
		return fmt.Errorf("gatewaycfg: market_data_service_url is required (set MARKET_DATA_SERVICE_URL)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("gatewaycfg: port must be in (0, 65535]")
	}
	switch c.RateLimit.Algorithm {
	case "token_bucket", "sliding_window", "fixed_window":
	default:
		return fmt.Errorf("gatewaycfg: rate_limit.algorithm must be one of token_bucket, sliding_window, fixed_window")
	}
	return nil
}
