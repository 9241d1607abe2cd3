// Command marketdata runs the market-data ingestion service: one connector
// session per configured exchange, continuity-checked and published onto
// the event bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecore/internal/connector"
	"tradecore/internal/continuity"
	"tradecore/internal/eventbus"
	"tradecore/internal/ingest"
	"tradecore/internal/marketdatacfg"
	"tradecore/pkg/model"
	"tradecore/pkg/telemetry"
)

func main() {
	configPath := os.Getenv("MARKETDATA_CONFIG")

	cfg, err := marketdatacfg.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketdata: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "marketdata: invalid config: %v\n", err)
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

	sessions := make([]*connector.Session, 0, len(cfg.Exchanges))
	for _, exCfg := range cfg.Exchanges {
		exchange, err := marketdatacfg.ParseExchange(exCfg.Exchange)
		if err != nil {
			logger.Error("skipping exchange", "exchange", exCfg.Exchange, "error", err)
			continue
		}

		symbols := make([]model.Symbol, 0, len(exCfg.Symbols))
		for _, s := range exCfg.Symbols {
			symbol, err := model.ParseSymbol(s)
			if err != nil {
				logger.Error("skipping symbol", "exchange", exchange, "symbol", s, "error", err)
				continue
			}
			symbols = append(symbols, symbol)
		}

		intervals := make([]model.Interval, 0, len(exCfg.KlineIntervals))
		for _, iv := range exCfg.KlineIntervals {
			intervals = append(intervals, marketdatacfg.ParseInterval(iv))
		}

		sessionCfg := connector.DefaultConfig()
		sessionCfg.Exchange = exchange
		sessionCfg.WSURL = exCfg.WSURL
		sessionCfg.Symbols = symbols
		sessionCfg.DataTypes = connector.DataTypes{
			Ticker:         exCfg.Ticker,
			Kline:          exCfg.Kline,
			KlineIntervals: intervals,
			Depth:          exCfg.Depth,
			Trade:          exCfg.Trade,
		}

		sessions = append(sessions, connector.NewSession(sessionCfg, cfg.EventBuffer, logger))
	}

	if len(sessions) == 0 {
		logger.Error("no valid exchanges configured, exiting")
		os.Exit(1)
	}

	detector := continuity.New(telemetry.Component(logger, "continuity"))
	mgr := ingest.New(ingest.Config{QueueSize: cfg.QueueSize}, sessions, bus, detector, logger)
	healthSrv := ingest.NewHealthServer(cfg.HealthAddr, mgr, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("ingestion manager exited", "error", err)
		}
	}()

	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server failed", "error", err)
		}
	}()

	logger.Info("marketdata starting", "exchanges", len(sessions), "health_addr", cfg.HealthAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("marketdata shutting down")
	cancel()
	if err := healthSrv.Stop(); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}
}
