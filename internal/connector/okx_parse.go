package connector

import (
	"encoding/json"
	"fmt"
	"time"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// okxEnvelope is OKX's public-channel push format: {arg: {channel, instId},
// data: [...]}.
type okxEnvelope struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data json.RawMessage `json:"data"`
}

type okxTickerEntry struct {
	Last   string `json:"last"`
	LastSz string `json:"lastSz"`
	Ts     string `json:"ts"`
}

type okxTradeEntry struct {
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Side string `json:"side"`
	Ts   string `json:"ts"`
}

// okxBookEntry carries top-of-book arrays: [[price, qty, _, _], ...].
type okxBookEntry struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

func parseOKXFrame(raw []byte) (Event, error) {
	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("okx: unmarshal envelope: %w", err)
	}
	symbol, err := model.ParseSymbol(env.Arg.InstID)
	if err != nil {
		return Event{}, fmt.Errorf("okx: parse symbol: %w", err)
	}

	switch {
	case env.Arg.Channel == "tickers":
		var entries []okxTickerEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
			return Event{}, fmt.Errorf("okx: unmarshal tickers: %w", err)
		}
		e := entries[0]
		price, err := money.Parse(e.Last)
		if err != nil {
			return Event{}, fmt.Errorf("okx: parse price: %w", err)
		}
		qty, _ := money.Parse(e.LastSz)
		return Event{Kind: EventTick, Tick: &model.Tick{
			Exchange: model.ExchangeOKX, Symbol: symbol, Price: price, Quantity: qty,
			Timestamp: parseOKXTs(e.Ts), Quality: model.DataQualityNormal,
		}}, nil

	case env.Arg.Channel == "trades":
		var entries []okxTradeEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
			return Event{}, fmt.Errorf("okx: unmarshal trades: %w", err)
		}
		e := entries[0]
		price, err := money.Parse(e.Px)
		if err != nil {
			return Event{}, fmt.Errorf("okx: parse price: %w", err)
		}
		qty, _ := money.Parse(e.Sz)
		side := model.Buy
		if e.Side == "sell" {
			side = model.Sell
		}
		return Event{Kind: EventTrade, Trade: &model.MarketTrade{
			Exchange: model.ExchangeOKX, Symbol: symbol, Price: price, Quantity: qty, Side: side,
			Timestamp: parseOKXTs(e.Ts), Quality: model.DataQualityNormal,
		}}, nil

	case env.Arg.Channel == "books" || env.Arg.Channel == "books5":
		var entries []okxBookEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil || len(entries) == 0 {
			return Event{}, fmt.Errorf("okx: unmarshal book: %w", err)
		}
		e := entries[0]
		return Event{Kind: EventOrderBook, OrderBook: &model.OrderBook{
			Exchange: model.ExchangeOKX, Symbol: symbol,
			Bids: parseLevels(e.Bids), Asks: parseLevels(e.Asks),
			Timestamp: parseOKXTs(e.Ts), Quality: model.DataQualityNormal,
		}}, nil

	default:
		return Event{}, fmt.Errorf("okx: unknown channel %q", env.Arg.Channel)
	}
}

func parseOKXTs(ts string) time.Time {
	d, err := money.Parse(ts)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(d.IntPart()).UTC()
}
