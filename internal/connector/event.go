package connector

import "tradecore/pkg/model"

// EventKind discriminates Event's active field, the Go analogue of the
// sealed Rust enum spec.md §4.4 describes for normalized connector output.
type EventKind int

const (
	EventTick EventKind = iota
	EventKline
	EventOrderBook
	EventTrade
	EventHeartbeat
	EventError
	EventConnectionStatus
)

// Event is a normalized frame. Exactly one field matching Kind is set; the
// others are zero. Consumers switch on Kind rather than type-asserting an
// interface{}.
type Event struct {
	Kind             EventKind
	Tick             *model.Tick
	Kline            *model.Kline
	OrderBook        *model.OrderBook
	Trade            *model.MarketTrade
	Heartbeat        *model.Heartbeat
	Error            *model.StreamError
	ConnectionStatus *model.ConnectionStatus
}

// Capability is an optional-feature probe. Not every exchange connector
// supports every capability; spec.md §9 calls for "a capability
// abstraction... appropriate for optional features" alongside the sealed
// connector set.
type Capability interface {
	SupportsMarketData() bool
	SupportsRestBackfill() bool
}

// capabilities is the per-exchange capability table. All three venues
// support live market data; only Binance and OKX expose the REST backfill
// endpoints this module integrates with (Huobi's is out of scope here).
var capabilities = map[model.Exchange]struct {
	marketData   bool
	restBackfill bool
}{
	model.ExchangeBinance: {marketData: true, restBackfill: true},
	model.ExchangeOKX:     {marketData: true, restBackfill: true},
	model.ExchangeHuobi:   {marketData: true, restBackfill: false},
}

// exchangeCapability implements Capability for one sealed Exchange variant.
type exchangeCapability struct {
	exchange model.Exchange
}

func (c exchangeCapability) SupportsMarketData() bool {
	return capabilities[c.exchange].marketData
}

func (c exchangeCapability) SupportsRestBackfill() bool {
	return capabilities[c.exchange].restBackfill
}

// CapabilityFor returns the Capability descriptor for exchange.
func CapabilityFor(exchange model.Exchange) Capability {
	return exchangeCapability{exchange: exchange}
}
