package connector

import (
	"testing"

	"tradecore/pkg/model"
)

func TestParseFrameBinanceTicker(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"stream": "btcusdt@ticker",
		"data": {"e":"24hrTicker","E":1640995200000,"s":"BTCUSDT","c":"47000.50","Q":"0.015"}
	}`)
	event, err := ParseFrame(model.ExchangeBinance, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventTick {
		t.Fatalf("Kind = %v, want EventTick", event.Kind)
	}
	if event.Tick.Symbol != model.NewSymbol("BTC", "USDT") {
		t.Errorf("Symbol = %v, want BTCUSDT", event.Tick.Symbol)
	}
	if event.Tick.Price.String() != "47000.5" {
		t.Errorf("Price = %v, want 47000.5", event.Tick.Price)
	}
}

func TestParseFrameBinanceDepth(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"stream": "ethusdt@depth",
		"data": {"e":"depthUpdate","E":1640995200000,"s":"ETHUSDT",
			"b":[["3000.10","1.5"],["3000.00","2.0"]],
			"a":[["3000.20","0.5"]]}
	}`)
	event, err := ParseFrame(model.ExchangeBinance, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventOrderBook {
		t.Fatalf("Kind = %v, want EventOrderBook", event.Kind)
	}
	if event.OrderBook.Symbol != model.NewSymbol("ETH", "USDT") {
		t.Errorf("Symbol = %v, want ETHUSDT", event.OrderBook.Symbol)
	}
	if len(event.OrderBook.Bids) != 2 || len(event.OrderBook.Asks) != 1 {
		t.Errorf("Bids/Asks = %d/%d, want 2/1", len(event.OrderBook.Bids), len(event.OrderBook.Asks))
	}
}

func TestParseFrameBinanceTradeSide(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"stream": "btcusdt@trade",
		"data": {"e":"trade","E":1640995200000,"s":"BTCUSDT","p":"47000.50","q":"0.1","m":true}
	}`)
	event, err := ParseFrame(model.ExchangeBinance, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventTrade {
		t.Fatalf("Kind = %v, want EventTrade", event.Kind)
	}
	if event.Trade.Side != model.Sell {
		t.Errorf("Side = %v, want Sell when buyer is market maker (taker sold)", event.Trade.Side)
	}
}

func TestParseFrameOKXTicker(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"arg":{"channel":"tickers","instId":"BTC-USDT"},
		"data":[{"last":"47000.50","lastSz":"0.01","ts":"1640995200000"}]
	}`)
	event, err := ParseFrame(model.ExchangeOKX, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventTick {
		t.Fatalf("Kind = %v, want EventTick", event.Kind)
	}
	if event.Tick.Symbol != model.NewSymbol("BTC", "USDT") {
		t.Errorf("Symbol = %v, want BTCUSDT", event.Tick.Symbol)
	}
}

func TestParseFrameOKXBook(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"arg":{"channel":"books5","instId":"ETH-USDT"},
		"data":[{"bids":[["3000.10","1.5"]],"asks":[["3000.20","0.5"]],"ts":"1640995200000"}]
	}`)
	event, err := ParseFrame(model.ExchangeOKX, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventOrderBook {
		t.Fatalf("Kind = %v, want EventOrderBook", event.Kind)
	}
	if event.OrderBook.Symbol != model.NewSymbol("ETH", "USDT") {
		t.Errorf("Symbol = %v, want ETHUSDT", event.OrderBook.Symbol)
	}
}

func TestParseFrameHuobiTicker(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"ch":"market.btcusdt.detail",
		"ts":1640995200000,
		"tick":{"close":"47000.50","vol":"1200.0"}
	}`)
	event, err := ParseFrame(model.ExchangeHuobi, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventTick {
		t.Fatalf("Kind = %v, want EventTick", event.Kind)
	}
	if event.Tick.Symbol != model.NewSymbol("BTC", "USDT") {
		t.Errorf("Symbol = %v, want BTCUSDT (derived from channel, not caller-supplied)", event.Tick.Symbol)
	}
}

func TestParseFrameHuobiKline(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"ch":"market.ethusdt.kline.1min",
		"ts":1640995200000,
		"tick":{"id":1640995140,"open":"3000.0","high":"3010.0","low":"2990.0","close":"3005.0","amount":"10.0"}
	}`)
	event, err := ParseFrame(model.ExchangeHuobi, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventKline {
		t.Fatalf("Kind = %v, want EventKline", event.Kind)
	}
	if event.Kline.Symbol != model.NewSymbol("ETH", "USDT") {
		t.Errorf("Symbol = %v, want ETHUSDT", event.Kline.Symbol)
	}
	if event.Kline.Interval != model.Interval1m {
		t.Errorf("Interval = %v, want 1m", event.Kline.Interval)
	}
}

func TestParseFrameHuobiDepthPreservesDecimalPrecision(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"ch":"market.btcusdt.depth.step0",
		"ts":1640995200000,
		"tick":{"bids":[[47000.123456,1.5]],"asks":[[47000.654321,0.5]]}
	}`)
	event, err := ParseFrame(model.ExchangeHuobi, raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if event.Kind != EventOrderBook {
		t.Fatalf("Kind = %v, want EventOrderBook", event.Kind)
	}
	if event.OrderBook.Bids[0].Price.String() != "47000.123456" {
		t.Errorf("Bid price = %v, want 47000.123456 preserved exactly", event.OrderBook.Bids[0].Price)
	}
}

func TestParseFrameUnknownExchange(t *testing.T) {
	t.Parallel()
	_, err := ParseFrame(model.Exchange("KRAKEN"), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown exchange")
	}
}

func TestParseFrameMalformedJSONReturnsError(t *testing.T) {
	t.Parallel()
	_, err := ParseFrame(model.ExchangeBinance, []byte(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed frame, never a panic")
	}
}
