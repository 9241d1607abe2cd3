package connector

import (
	"encoding/json"
	"fmt"
	"time"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// binanceEnvelope wraps every combined-stream payload Binance sends; the
// inner data's shape is discriminated by its "e" event-type field,
// matching the "stream envelope, dispatch by inner discriminator" parse
// step of spec.md §4.4.
type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTickerData struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	LastQty   string `json:"Q"`
}

type binanceKlineData struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
	} `json:"k"`
}

type binanceTradeData struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	IsBuyerMM bool   `json:"m"` // true if the buyer is the market maker (taker was a sell)
}

type binanceDepthData struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

func parseBinanceFrame(raw []byte) (Event, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("binance: unmarshal envelope: %w", err)
	}

	var discriminator struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(env.Data, &discriminator); err != nil {
		return Event{}, fmt.Errorf("binance: unmarshal discriminator: %w", err)
	}

	switch discriminator.EventType {
	case "24hrTicker":
		var d binanceTickerData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, fmt.Errorf("binance: unmarshal ticker: %w", err)
		}
		price, err := money.Parse(d.LastPrice)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse price: %w", err)
		}
		qty, err := money.Parse(d.LastQty)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse qty: %w", err)
		}
		symbol, err := model.ParseSymbol(d.Symbol)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse symbol: %w", err)
		}
		return Event{Kind: EventTick, Tick: &model.Tick{
			Exchange: model.ExchangeBinance, Symbol: symbol, Price: price, Quantity: qty,
			Timestamp: time.UnixMilli(d.EventTime).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "kline":
		var d binanceKlineData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, fmt.Errorf("binance: unmarshal kline: %w", err)
		}
		open, _ := money.Parse(d.Kline.Open)
		high, _ := money.Parse(d.Kline.High)
		low, _ := money.Parse(d.Kline.Low)
		closePrice, _ := money.Parse(d.Kline.Close)
		volume, _ := money.Parse(d.Kline.Volume)
		symbol, err := model.ParseSymbol(d.Symbol)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse symbol: %w", err)
		}
		return Event{Kind: EventKline, Kline: &model.Kline{
			Exchange: model.ExchangeBinance, Symbol: symbol, Interval: model.Interval(d.Kline.Interval),
			OpenTime: time.UnixMilli(d.Kline.OpenTime).UTC(), CloseTime: time.UnixMilli(d.Kline.CloseTime).UTC(),
			Open: open, High: high, Low: low, Close: closePrice, Volume: volume,
			Timestamp: time.Now().UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "trade":
		var d binanceTradeData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, fmt.Errorf("binance: unmarshal trade: %w", err)
		}
		price, _ := money.Parse(d.Price)
		qty, _ := money.Parse(d.Quantity)
		side := model.Buy
		if d.IsBuyerMM {
			side = model.Sell
		}
		symbol, err := model.ParseSymbol(d.Symbol)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse symbol: %w", err)
		}
		return Event{Kind: EventTrade, Trade: &model.MarketTrade{
			Exchange: model.ExchangeBinance, Symbol: symbol, Price: price, Quantity: qty, Side: side,
			Timestamp: time.UnixMilli(d.EventTime).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	case "depthUpdate":
		var d binanceDepthData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, fmt.Errorf("binance: unmarshal depth: %w", err)
		}
		symbol, err := model.ParseSymbol(d.Symbol)
		if err != nil {
			return Event{}, fmt.Errorf("binance: parse symbol: %w", err)
		}
		return Event{Kind: EventOrderBook, OrderBook: &model.OrderBook{
			Exchange: model.ExchangeBinance, Symbol: symbol,
			Bids: parseLevels(d.Bids), Asks: parseLevels(d.Asks),
			Timestamp: time.UnixMilli(d.EventTime).UTC(), Quality: model.DataQualityNormal,
		}}, nil

	default:
		return Event{}, fmt.Errorf("binance: unknown event type %q", discriminator.EventType)
	}
}

func parseLevels(raw [][]string) []model.OrderBookLevel {
	levels := make([]model.OrderBookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err := money.Parse(pair[0])
		if err != nil {
			continue
		}
		qty, err := money.Parse(pair[1])
		if err != nil {
			continue
		}
		levels = append(levels, model.OrderBookLevel{Price: price, Quantity: qty})
	}
	return levels
}
