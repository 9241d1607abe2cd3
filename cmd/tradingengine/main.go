// Command tradingengine runs the trading core: order intake off the event
// bus, pre-trade risk validation, smart-routed execution, and position
// bookkeeping, per spec.md §4.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecore/internal/adminapi"
	"tradecore/internal/engine"
	"tradecore/internal/eventbus"
	"tradecore/internal/execution"
	"tradecore/internal/matching"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/internal/tradingcfg"
	"tradecore/pkg/telemetry"
)

func main() {
	configPath := os.Getenv("TRADING_CONFIG")

	cfg, err := tradingcfg.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tradingengine: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tradingengine: invalid config: %v\n", err)
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

	bus := eventbus.New(redisClient, telemetry.Component(logger, "eventbus"), 3, 100*time.Millisecond)

	feeSchedule, err := cfg.FeeSchedule()
	if err != nil {
		logger.Error("invalid fee_schedule", "error", err)
		os.Exit(1)
	}
	matchingEngine := matching.NewEngine(feeSchedule, telemetry.Component(logger, "matching"))

	systemLimits, err := cfg.SystemLimits()
	if err != nil {
		logger.Error("invalid system_limits", "error", err)
		os.Exit(1)
	}
	riskMgr := risk.NewManager(systemLimits, telemetry.Component(logger, "risk"))

	internalVenue := execution.NewInternalVenue(matchingEngine, feeSchedule)
	router := execution.NewRouter(cfg.RouterConfig(), internalVenue, telemetry.Component(logger, "execution-router"))

	positions, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Error("open position store", "error", err)
		os.Exit(1)
	}
	defer positions.Close()

	engineCfg := engine.DefaultConfig()
	engineCfg.MonitorInterval = cfg.MonitorInterval
	engineCfg.SweepInterval = cfg.SweepInterval

	tradingEngine, err := engine.New(engineCfg, matchingEngine, riskMgr, router, bus, positions, telemetry.Component(logger, "trading-engine"))
	if err != nil {
		logger.Error("construct trading engine", "error", err)
		os.Exit(1)
	}

	healthSrv := engine.NewHealthServer(cfg.HealthAddr, tradingEngine, logger)
	adminSrv := adminapi.NewServer(cfg.AdminAddr, tradingEngine, cfg.AdminAllowedOrigins, logger)

	if err := tradingEngine.Start(); err != nil {
		logger.Error("start trading engine", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server failed", "error", err)
		}
	}()

	go func() {
		if err := adminSrv.Start(); err != nil {
			logger.Error("admin API server failed", "error", err)
		}
	}()

	forwardCtx, stopForwarding := context.WithCancel(context.Background())
	go forwardEventsToAdminAPI(forwardCtx, bus, adminSrv, telemetry.Component(logger, "adminapi-forwarder"))

	logger.Info("tradingengine starting", "health_addr", cfg.HealthAddr, "admin_addr", cfg.AdminAddr, "data_dir", cfg.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("tradingengine shutting down")
	stopForwarding()
	tradingEngine.Stop()
	if err := healthSrv.Stop(); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}
	if err := adminSrv.Stop(); err != nil {
		logger.Error("admin API server shutdown error", "error", err)
	}
}

// forwardEventsToAdminAPI subscribes to the trading engine's own event-bus
// traffic and relays it onto the admin API's WebSocket hub, so a connected
// dashboard sees trades, position updates, and risk alerts as they happen
// rather than only on the next snapshot poll.
func forwardEventsToAdminAPI(ctx context.Context, bus *eventbus.Bus, adminSrv *adminapi.Server, logger *slog.Logger) {
	topics := []eventbus.Topic{
		eventbus.TopicTradingTrades,
		eventbus.TopicTradingPositions,
		eventbus.TopicRiskAlerts,
	}

	envelopes, err := bus.Subscribe(ctx, topics...)
	if err != nil {
		logger.Error("subscribe for admin API forwarding", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			adminSrv.Broadcast(adminapi.Event{
				Type:      env.EventType,
				Timestamp: env.Timestamp,
				Data:      env.Data,
			})
		}
	}
}
