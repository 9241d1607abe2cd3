// Package eventbus publishes and consumes the normalized domain events
// flowing between services over Redis pub/sub, per spec.md §6's event bus
// topic layout and envelope shape. Redis is already the gateway's rate
// limiter backend; no broker client in the reference
// pack grounds a dedicated message-queue library, so pub/sub on the
// existing redis.Cmdable is the idiomatic choice here.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic is one of the fixed, stable channel names consumers subscribe to.
type Topic string

const (
	TopicMarketTicks      Topic = "market.ticks"
	TopicMarketKlines     Topic = "market.klines"
	TopicMarketOrderBook  Topic = "market.orderbook"
	TopicMarketTrades     Topic = "market.trades"
	TopicTradingOrders    Topic = "trading.orders"
	TopicTradingTrades    Topic = "trading.trades"
	TopicTradingPositions Topic = "trading.positions"
	TopicTradingBalances  Topic = "trading.balances"
	TopicStrategySignals  Topic = "strategy.signals"
	TopicRiskAlerts       Topic = "risk.alerts"
	TopicSystemEvents     Topic = "system.events"
)

// EnvelopeVersion is stamped on every Envelope this package produces.
const EnvelopeVersion = 1

// Envelope is the wire shape for every message on the bus: spec.md §6,
// `{id, timestamp, source, event_type, version, data, metadata}`.
type Envelope struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	EventType string            `json:"event_type"`
	Version   int               `json:"version"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope marshals payload into an Envelope ready to publish. source
// identifies the producing service (e.g. "marketdata", "tradingengine");
// eventType is a short dotted name describing the payload (e.g.
// "tick.updated").
func NewEnvelope(source, eventType string, payload any, metadata map[string]string) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   EnvelopeVersion,
		Data:      data,
		Metadata:  metadata,
	}, nil
}

// Unmarshal decodes the envelope's Data field into v.
func (e Envelope) Unmarshal(v any) error {
	return json.Unmarshal(e.Data, v)
}
