package connector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// huobiEnvelope is Huobi's push format: {ch: "market.<symbol>.<channel>",
// ts: <millis>, tick: {...}}. parseHuobiFrame expects plain JSON; Session
// passes frames to ParseFrame as received and does not gzip-decompress them.
type huobiEnvelope struct {
	Ch   string          `json:"ch"`
	Ts   int64           `json:"ts"`
	Tick json.RawMessage `json:"tick"`
}

type huobiTickerTick struct {
	Close string `json:"close"`
	Vol   string `json:"vol"`
}

type huobiKlineTick struct {
	ID     int64  `json:"id"` // open time, seconds
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Amount string `json:"amount"`
}

type huobiTradeTick struct {
	Data []struct {
		Price     string `json:"price"`
		Amount    string `json:"amount"`
		Direction string `json:"direction"`
		Ts        int64  `json:"ts"`
	} `json:"data"`
}

// huobiDepthTick decodes price/qty pairs as json.Number so the literal
// decimal digits survive intact — never through a binary float64, per
// spec.md §9's "no floating-point for money".
type huobiDepthTick struct {
	Bids [][]json.Number `json:"bids"`
	Asks [][]json.Number `json:"asks"`
}

func parseHuobiFrame(raw []byte) (Event, error) {
	var env huobiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("huobi: unmarshal envelope: %w", err)
	}
	symbol, err := huobiSymbolFromChannel(env.Ch)
	if err != nil {
		return Event{}, fmt.Errorf("huobi: %w", err)
	}

	switch huobiChannelKind(env.Ch) {
	case "detail":
		var t huobiTickerTick
		if err := json.Unmarshal(env.Tick, &t); err != nil {
			return Event{}, fmt.Errorf("huobi: unmarshal ticker: %w", err)
		}
		price, err := money.Parse(t.Close)
		if err != nil {
			return Event{}, fmt.Errorf("huobi: parse price: %w", err)
		}
		qty, _ := money.Parse(t.Vol)
		return Event{Kind: EventTick, Tick: &model.Tick{
			Exchange: model.ExchangeHuobi, Symbol: symbol, Price: price, Quantity: qty,
			Timestamp: time.UnixMilli(env.Ts).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "kline":
		var t huobiKlineTick
		if err := json.Unmarshal(env.Tick, &t); err != nil {
			return Event{}, fmt.Errorf("huobi: unmarshal kline: %w", err)
		}
		open, _ := money.Parse(t.Open)
		high, _ := money.Parse(t.High)
		low, _ := money.Parse(t.Low)
		closePrice, err := money.Parse(t.Close)
		if err != nil {
			return Event{}, fmt.Errorf("huobi: parse close: %w", err)
		}
		volume, _ := money.Parse(t.Amount)
		openTime := time.Unix(t.ID, 0).UTC()
		return Event{Kind: EventKline, Kline: &model.Kline{
			Exchange: model.ExchangeHuobi, Symbol: symbol, Interval: huobiIntervalFromChannel(env.Ch),
			OpenTime: openTime, Open: open, High: high, Low: low, Close: closePrice, Volume: volume,
			Timestamp: time.UnixMilli(env.Ts).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "trade":
		var t huobiTradeTick
		if err := json.Unmarshal(env.Tick, &t); err != nil || len(t.Data) == 0 {
			return Event{}, fmt.Errorf("huobi: unmarshal trade: %w", err)
		}
		d := t.Data[0]
		price, err := money.Parse(d.Price)
		if err != nil {
			return Event{}, fmt.Errorf("huobi: parse price: %w", err)
		}
		qty, _ := money.Parse(d.Amount)
		side := model.Buy
		if d.Direction == "sell" {
			side = model.Sell
		}
		return Event{Kind: EventTrade, Trade: &model.MarketTrade{
			Exchange: model.ExchangeHuobi, Symbol: symbol, Price: price, Quantity: qty, Side: side,
			Timestamp: time.UnixMilli(d.Ts).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "depth":
		var t huobiDepthTick
		if err := json.Unmarshal(env.Tick, &t); err != nil {
			return Event{}, fmt.Errorf("huobi: unmarshal depth: %w", err)
		}
		return Event{Kind: EventOrderBook, OrderBook: &model.OrderBook{
			Exchange: model.ExchangeHuobi, Symbol: symbol,
			Bids: huobiNumberLevels(t.Bids), Asks: huobiNumberLevels(t.Asks),
			Timestamp: time.UnixMilli(env.Ts).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	default:
		return Event{}, fmt.Errorf("huobi: unknown channel %q", env.Ch)
	}
}

// huobiSymbolFromChannel extracts the second dot-separated segment of
// "market.btcusdt.detail" style channel names.
func huobiSymbolFromChannel(ch string) (model.Symbol, error) {
	parts := strings.SplitN(ch, ".", 3)
	if len(parts) < 2 {
		return model.Symbol{}, fmt.Errorf("malformed channel %q", ch)
	}
	return model.ParseSymbol(parts[1])
}

// huobiChannelKind returns the first of "detail", "kline", "trade", "depth"
// contained in channel names such as "market.btcusdt.detail" or
// "market.btcusdt.kline.1min".
func huobiChannelKind(ch string) string {
	for _, kind := range []string{"detail", "kline", "trade", "depth"} {
		if strings.Contains(ch, kind) {
			return kind
		}
	}
	return ""
}

func huobiIntervalFromChannel(ch string) model.Interval {
	switch {
	case strings.Contains(ch, "1min"):
		return model.Interval1m
	case strings.Contains(ch, "15min"):
		return model.Interval15m
	case strings.Contains(ch, "5min"):
		return model.Interval5m
	case strings.Contains(ch, "60min"):
		return model.Interval1h
	case strings.Contains(ch, "4hour"):
		return model.Interval4h
	case strings.Contains(ch, "1day"):
		return model.Interval1d
	default:
		return model.Interval1m
	}
}

// huobiNumberLevels converts Huobi's [price, qty] pairs, decoded as
// json.Number so the literal decimal digits pass through money.Parse
// untouched by binary float rounding.
func huobiNumberLevels(raw [][]json.Number) []model.OrderBookLevel {
	levels := make([]model.OrderBookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err := money.Parse(pair[0].String())
		if err != nil {
			continue
		}
		qty, err := money.Parse(pair[1].String())
		if err != nil {
			continue
		}
		levels = append(levels, model.OrderBookLevel{Price: price, Quantity: qty})
	}
	return levels
}
