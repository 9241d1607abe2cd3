// Command gateway runs the edge gateway: auth, rate limiting, service
// discovery and reverse proxying in front of the trading platform's
// downstream services.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecore/internal/circuitbreaker"
	"tradecore/internal/gatewayauth"
	"tradecore/internal/gatewaycfg"
	"tradecore/internal/proxy"
	"tradecore/internal/ratelimit"
	"tradecore/internal/registry"
	"tradecore/pkg/telemetry"
)

func main() {
	configPath := os.Getenv("GATEWAY_CONFIG")

	cfg, err := gatewaycfg.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid redis_url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	reg := registry.New(5*time.Second, telemetry.Component(logger, "registry"))
	reg.Register("user-service", cfg.UserServiceURL, "", nil)
	reg.Register("trading-service", cfg.TradingServiceURL, "", nil)
	reg.Register("market-data-service", cfg.MarketDataServiceURL, "", nil)

	var algo ratelimit.Algorithm
	switch cfg.RateLimit.Algorithm {
	case "token_bucket":
		algo = ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.BurstSize, cfg.RateLimit.RequestsPerMinute)
	case "fixed_window":
		algo = ratelimit.NewFixedWindow(redisClient, cfg.RateLimit.Window, int64(cfg.RateLimit.RequestsPerMinute))
	default:
		algo = ratelimit.NewSlidingWindow(redisClient, cfg.RateLimit.Window, int64(cfg.RateLimit.RequestsPerMinute))
	}
	limiter := ratelimit.New(algo, cfg.RateLimit.Whitelist, telemetry.Component(logger, "ratelimit"))

	validator := gatewayauth.NewValidator(cfg.JWTSecret)

	breakerCfg := circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	}
	p := proxy.New(proxy.Config{
		APIPrefix:       cfg.APIPrefix,
		PublicPaths:     proxy.PublicPaths(cfg.PublicPaths),
		UpstreamTimeout: cfg.UpstreamTimeout,
		BreakerConfig:   breakerCfg,
	}, reg, limiter, validator, telemetry.Component(logger, "proxy"))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      p,
		ReadTimeout:  cfg.UpstreamTimeout,
		WriteTimeout: cfg.UpstreamTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := ratelimit.NewSweeper(redisClient, time.Minute, telemetry.Component(logger, "ratelimit-sweep"))
	go sweeper.Run(ctx)
	go reg.RunHealthChecks(ctx, 10*time.Second)

	go func() {
		logger.Info("gateway starting", "addr", addr, "rate_limit_algorithm", cfg.RateLimit.Algorithm)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("gateway shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown error", "error", err)
	}
}
