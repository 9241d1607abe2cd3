// Package marketdatacfg defines the market-data binary's configuration:
// which exchanges/symbols/streams to ingest, Redis event bus connection,
// and the health server's bind address.
package marketdatacfg

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"tradecore/pkg/model"
)

// ExchangeConfig configures one connector session.
type ExchangeConfig struct {
	Exchange string   `mapstructure:"exchange"`
	WSURL    string   `mapstructure:"ws_url"`
	Symbols  []string `mapstructure:"symbols"`

	Ticker         bool     `mapstructure:"ticker"`
	Kline          bool     `mapstructure:"kline"`
	KlineIntervals []string `mapstructure:"kline_intervals"`
	Depth          bool     `mapstructure:"depth"`
	Trade          bool     `mapstructure:"trade"`
}

// Config is the market-data binary's full configuration.
type Config struct {
	RedisURL    string           `mapstructure:"redis_url"`
	HealthAddr  string           `mapstructure:"health_addr"`
	EventBuffer int              `mapstructure:"event_buffer"`
	QueueSize   int              `mapstructure:"queue_size"`
	Exchanges   []ExchangeConfig `mapstructure:"exchanges"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file at path, layered under
// environment variables (MARKETDATA_ prefix), which always win.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("MARKETDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("health_addr", ":8090")
	v.SetDefault("event_buffer", 1024)
	v.SetDefault("queue_size", 256)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("marketdatacfg: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("marketdatacfg: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces that at least one exchange is configured and every
// exchange name/symbol resolves.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("marketdatacfg: redis_url is required")
	}
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("marketdatacfg: at least one exchange must be configured")
	}
	for _, ex := range c.Exchanges {
		if _, err := ParseExchange(ex.Exchange); err != nil {
			return fmt.Errorf("marketdatacfg: %w", err)
		}
		if ex.WSURL == "" {
			return fmt.Errorf("marketdatacfg: exchange %s: ws_url is required", ex.Exchange)
		}
		for _, sym := range ex.Symbols {
			if _, err := model.ParseSymbol(sym); err != nil {
				return fmt.Errorf("marketdatacfg: exchange %s: invalid symbol %q: %w", ex.Exchange, sym, err)
			}
		}
	}
	return nil
}

// ParseExchange maps a config string to a sealed model.Exchange.
func ParseExchange(s string) (model.Exchange, error) {
	switch strings.ToUpper(s) {
	case string(model.ExchangeBinance):
		return model.ExchangeBinance, nil
	case string(model.ExchangeOKX):
		return model.ExchangeOKX, nil
	case string(model.ExchangeHuobi):
		return model.ExchangeHuobi, nil
	default:
		return "", fmt.Errorf("unknown exchange %q", s)
	}
}

// ParseInterval maps a config string to a model.Interval, defaulting to 1m.
func ParseInterval(s string) model.Interval {
	switch s {
	case "1s":
		return model.Interval1s
	case "1m":
		return model.Interval1m
	case "5m":
		return model.Interval5m
	case "15m":
		return model.Interval15m
	case "1h":
		return model.Interval1h
	case "4h":
		return model.Interval4h
	case "1d":
		return model.Interval1d
	case "1w":
		return model.Interval1w
	case "1M":
		return model.Interval1M
	default:
		return model.Interval1m
	}
}
