// Package connector implements exchange WebSocket market-data sessions: one
// instance per (exchange, credentials), reconnecting with exponential
// backoff and normalizing every frame into the model.Tick/Kline/OrderBook/
// MarketTrade/Heartbeat/StreamError/ConnectionStatus sum named in spec.md
// §4.4. Dispatch is a closed switch over model.Exchange rather than an open
// interface set, per spec.md §9's "sealed sum" guidance.
package connector

import (
	"time"

	"tradecore/pkg/model"
)

// DataTypes are the stream categories a connector may subscribe to.
type DataTypes struct {
	Ticker        bool
	Kline         bool
	KlineIntervals []model.Interval
	Depth         bool
	Trade         bool
}

// Config configures one connector session.
type Config struct {
	Exchange    model.Exchange
	WSURL       string
	Symbols     []model.Symbol
	DataTypes   DataTypes

	ConnectTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration

	ReconnectInterval  time.Duration
	MaxReconnectAttempts int
	BackoffMultiplier  float64
	MaxBackoff         time.Duration
}

// DefaultConfig fills in the timeouts named in spec.md §4.4's defaults
// discussion, leaving Exchange/WSURL/Symbols/DataTypes to the caller.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       10 * time.Second,
		PingInterval:         20 * time.Second,
		PongTimeout:          10 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectAttempts: 10,
		BackoffMultiplier:    2.0,
		MaxBackoff:           30 * time.Second,
	}
}
