// Package tradingcfg defines the trading-engine binary's configuration:
// Redis event bus connection, position-store data directory, fee
// schedule, system-wide risk limits, default per-user risk profile, and
// the health server's bind address. Loaded with viper the same way
// internal/gatewaycfg and internal/marketdatacfg load their binaries'
// configuration.
package tradingcfg

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tradecore/internal/circuitbreaker"
	"tradecore/internal/execution"
	"tradecore/internal/matching"
	"tradecore/internal/risk"
	"tradecore/pkg/money"
)

// FeeScheduleConfig mirrors matching.FeeSchedule for config-file loading.
type FeeScheduleConfig struct {
	MakerRate string `mapstructure:"maker_rate"`
	TakerRate string `mapstructure:"taker_rate"`
}

// SystemLimitsConfig mirrors risk.SystemLimits for config-file loading.
type SystemLimitsConfig struct {
	MaxTotalExposure       string `mapstructure:"max_total_exposure"`
	MaxSymbolConcentration string `mapstructure:"max_symbol_concentration"`
	VolatilityThreshold    string `mapstructure:"volatility_threshold"`
	AutoMarginCall         bool   `mapstructure:"auto_margin_call"`
}

// DefaultProfileConfig mirrors risk.UserRiskProfile minus UserID/AllowedSymbols/
// BlockedSymbols. It is the template new user profiles are built from
// before being registered with the risk manager; it carries no UserID of
// its own, so Validate parses it against a placeholder id.
type DefaultProfileConfig struct {
	MaxOrderValue        string `mapstructure:"max_order_value"`
	MaxPositionValue     string `mapstructure:"max_position_value"`
	MaxDailyLoss         string `mapstructure:"max_daily_loss"`
	MaxLeverage          string `mapstructure:"max_leverage"`
	MaxOrdersPerMinute   int    `mapstructure:"max_orders_per_minute"`
	MarginCallThreshold  string `mapstructure:"margin_call_threshold"`
	LiquidationThreshold string `mapstructure:"liquidation_threshold"`
}

// BreakerConfig tunes every per-venue circuit breaker the router opens.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the trading-engine binary's full configuration.
type Config struct {
	RedisURL   string `mapstructure:"redis_url"`
	HealthAddr string `mapstructure:"health_addr"`
	AdminAddr  string `mapstructure:"admin_addr"`
	DataDir    string `mapstructure:"data_dir"`

	AdminAllowedOrigins []string `mapstructure:"admin_allowed_origins"`

	MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`

	FeeScheduleCfg  FeeScheduleConfig    `mapstructure:"fee_schedule"`
	SystemLimitsCfg SystemLimitsConfig   `mapstructure:"system_limits"`
	DefaultProfile  DefaultProfileConfig `mapstructure:"default_profile"`
	Breaker         BreakerConfig        `mapstructure:"breaker"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// envBindings lists every environment variable name the trading-engine
// binary honors, mapped to its mapstructure key.
var envBindings = map[string]string{
	"redis_url":   "TRADING_REDIS_URL",
	"health_addr": "TRADING_HEALTH_ADDR",
	"admin_addr":  "TRADING_ADMIN_ADDR",
	"data_dir":    "TRADING_DATA_DIR",
}

// Load reads configuration from an optional file at path, layered under
// environment variables, which always win.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("tradingcfg: bind env %s: %w", env, err)
		}
	}

	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("health_addr", ":8091")
	v.SetDefault("admin_addr", ":8092")
	v.SetDefault("data_dir", "./data/positions")
	v.SetDefault("admin_allowed_origins", []string{})
	v.SetDefault("monitor_interval", "5s")
	v.SetDefault("sweep_interval", "1s")
	v.SetDefault("execution_timeout", "5s")

	v.SetDefault("fee_schedule.maker_rate", "0.0001")
	v.SetDefault("fee_schedule.taker_rate", "0.0002")

	v.SetDefault("system_limits.max_total_exposure", "10000000")
	v.SetDefault("system_limits.max_symbol_concentration", "0.2")
	v.SetDefault("system_limits.volatility_threshold", "0.5")
	v.SetDefault("system_limits.auto_margin_call", true)

	v.SetDefault("default_profile.max_order_value", "100000")
	v.SetDefault("default_profile.max_position_value", "500000")
	v.SetDefault("default_profile.max_daily_loss", "50000")
	v.SetDefault("default_profile.max_leverage", "10")
	v.SetDefault("default_profile.max_orders_per_minute", 60)
	v.SetDefault("default_profile.margin_call_threshold", "0.1")
	v.SetDefault("default_profile.liquidation_threshold", "0.05")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout", "30s")
	v.SetDefault("breaker.half_open_max_calls", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("tradingcfg: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("tradingcfg: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the fields Load cannot check on its own (money parsing
// happens lazily in the accessor methods below, which return an error
// instead of panicking on a malformed config value).
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("tradingcfg: redis_url is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("tradingcfg: data_dir is required")
	}
	if _, err := c.FeeScheduleCfg.parse(); err != nil {
		return fmt.Errorf("tradingcfg: fee_schedule: %w", err)
	}
	if _, err := c.SystemLimitsCfg.parse(); err != nil {
		return fmt.Errorf("tradingcfg: system_limits: %w", err)
	}
	if _, err := c.DefaultProfile.parse("__default__"); err != nil {
		return fmt.Errorf("tradingcfg: default_profile: %w", err)
	}
	return nil
}

func (f FeeScheduleConfig) parse() (matching.FeeSchedule, error) {
	maker, err := money.Parse(f.MakerRate)
	if err != nil {
		return matching.FeeSchedule{}, fmt.Errorf("maker_rate: %w", err)
	}
	taker, err := money.Parse(f.TakerRate)
	if err != nil {
		return matching.FeeSchedule{}, fmt.Errorf("taker_rate: %w", err)
	}
	return matching.FeeSchedule{MakerRate: maker, TakerRate: taker}, nil
}

// FeeSchedule resolves the configured fee schedule into matching's type.
func (c *Config) FeeSchedule() (matching.FeeSchedule, error) {
	return c.FeeScheduleCfg.parse()
}

func (s SystemLimitsConfig) parse() (risk.SystemLimits, error) {
	exposure, err := money.Parse(s.MaxTotalExposure)
	if err != nil {
		return risk.SystemLimits{}, fmt.Errorf("max_total_exposure: %w", err)
	}
	concentration, err := money.Parse(s.MaxSymbolConcentration)
	if err != nil {
		return risk.SystemLimits{}, fmt.Errorf("max_symbol_concentration: %w", err)
	}
	volatility, err := money.Parse(s.VolatilityThreshold)
	if err != nil {
		return risk.SystemLimits{}, fmt.Errorf("volatility_threshold: %w", err)
	}
	return risk.SystemLimits{
		MaxTotalExposure:       exposure,
		MaxSymbolConcentration: concentration,
		VolatilityThreshold:    volatility,
		AutoMarginCall:         s.AutoMarginCall,
	}, nil
}

// SystemLimits resolves the configured system-wide risk limits.
func (c *Config) SystemLimits() (risk.SystemLimits, error) {
	return c.SystemLimitsCfg.parse()
}

func (d DefaultProfileConfig) parse(userID string) (risk.UserRiskProfile, error) {
	orderValue, err := money.Parse(d.MaxOrderValue)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("max_order_value: %w", err)
	}
	positionValue, err := money.Parse(d.MaxPositionValue)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("max_position_value: %w", err)
	}
	dailyLoss, err := money.Parse(d.MaxDailyLoss)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("max_daily_loss: %w", err)
	}
	leverage, err := money.Parse(d.MaxLeverage)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("max_leverage: %w", err)
	}
	marginCall, err := money.Parse(d.MarginCallThreshold)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("margin_call_threshold: %w", err)
	}
	liquidation, err := money.Parse(d.LiquidationThreshold)
	if err != nil {
		return risk.UserRiskProfile{}, fmt.Errorf("liquidation_threshold: %w", err)
	}
	return risk.UserRiskProfile{
		UserID:               userID,
		IsActive:             true,
		MaxOrderValue:        orderValue,
		MaxPositionValue:     positionValue,
		MaxDailyLoss:         dailyLoss,
		MaxLeverage:          leverage,
		MaxOrdersPerMinute:   d.MaxOrdersPerMinute,
		MarginCallThreshold:  marginCall,
		LiquidationThreshold: liquidation,
	}, nil
}

// RouterConfig resolves the execution router's tuning.
func (c *Config) RouterConfig() execution.Config {
	return execution.Config{
		ExecutionTimeout: c.ExecutionTimeout,
		BreakerConfig: circuitbreaker.Config{
			FailureThreshold: c.Breaker.FailureThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout,
			HalfOpenMaxCalls: c.Breaker.HalfOpenMaxCalls,
		},
	}
}
