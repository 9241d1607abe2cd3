package connector

import (
	"testing"

	"tradecore/pkg/model"
)

func TestGenerateStreamsBinanceAllTypes(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Exchange: model.ExchangeBinance,
		Symbols:  []model.Symbol{model.NewSymbol("BTC", "USDT")},
		DataTypes: DataTypes{
			Ticker:         true,
			Depth:          true,
			Trade:          true,
			Kline:          true,
			KlineIntervals: []model.Interval{model.Interval1m, model.Interval5m},
		},
	}
	streams := GenerateStreams(cfg)
	want := []string{
		"btcusdt@ticker",
		"btcusdt@depth",
		"btcusdt@trade",
		"btcusdt@kline_1m",
		"btcusdt@kline_5m",
	}
	if len(streams) != len(want) {
		t.Fatalf("streams = %v, want %v", streams, want)
	}
	for i, s := range streams {
		if s != want[i] {
			t.Errorf("streams[%d] = %q, want %q", i, s, want[i])
		}
	}
}

func TestGenerateStreamsOKXKlineSuffix(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Exchange: model.ExchangeOKX,
		Symbols:  []model.Symbol{model.NewSymbol("ETH", "USDT")},
		DataTypes: DataTypes{
			Kline:          true,
			KlineIntervals: []model.Interval{model.Interval1h},
		},
	}
	streams := GenerateStreams(cfg)
	if len(streams) != 1 || streams[0] != "ethusdt@candle1H" {
		t.Errorf("streams = %v, want [ethusdt@candle1H]", streams)
	}
}

func TestGenerateStreamsHuobiKlineSuffix(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Exchange: model.ExchangeHuobi,
		Symbols:  []model.Symbol{model.NewSymbol("BTC", "USDT")},
		DataTypes: DataTypes{
			Kline:          true,
			KlineIntervals: []model.Interval{model.Interval1m},
		},
	}
	streams := GenerateStreams(cfg)
	if len(streams) != 1 || streams[0] != "btcusdt@kline.1m" {
		t.Errorf("streams = %v, want [btcusdt@kline.1m]", streams)
	}
}

func TestGenerateStreamsMultipleSymbols(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Exchange: model.ExchangeBinance,
		Symbols: []model.Symbol{
			model.NewSymbol("BTC", "USDT"),
			model.NewSymbol("ETH", "USDT"),
		},
		DataTypes: DataTypes{Ticker: true},
	}
	streams := GenerateStreams(cfg)
	want := []string{"btcusdt@ticker", "ethusdt@ticker"}
	if len(streams) != 2 || streams[0] != want[0] || streams[1] != want[1] {
		t.Errorf("streams = %v, want %v", streams, want)
	}
}
