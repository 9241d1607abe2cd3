package connector

import (
	"fmt"
	"strings"

	"tradecore/pkg/model"
)

// streamSuffix returns the venue-specific K-line stream token for one
// interval, e.g. Binance's "kline_<interval>" or OKX's "candle<INTERVAL>".
func streamSuffix(exchange model.Exchange, interval model.Interval) string {
	switch exchange {
	case model.ExchangeBinance:
		return "kline_" + string(interval)
	case model.ExchangeOKX:
		return "candle" + binanceToOKXInterval(interval)
	case model.ExchangeHuobi:
		return "kline." + string(interval)
	default:
		return "kline_" + string(interval)
	}
}

func binanceToOKXInterval(i model.Interval) string {
	// OKX candle channels use the same interval tokens uppercased for
	// minute+ granularities.
	return strings.ToUpper(string(i))
}

// GenerateStreams synthesizes the subscription strings for every enabled
// data type across every configured symbol, per spec.md §4.4's stream-name
// generation policy: lowercase symbol + "@" + stream, including all
// configured K-line intervals.
func GenerateStreams(cfg Config) []string {
	var streams []string
	for _, sym := range cfg.Symbols {
		lower := strings.ToLower(sym.Canonical())

		if cfg.DataTypes.Ticker {
			streams = append(streams, fmt.Sprintf("%s@ticker", lower))
		}
		if cfg.DataTypes.Depth {
			streams = append(streams, fmt.Sprintf("%s@depth", lower))
		}
		if cfg.DataTypes.Trade {
			streams = append(streams, fmt.Sprintf("%s@trade", lower))
		}
		if cfg.DataTypes.Kline {
			for _, interval := range cfg.DataTypes.KlineIntervals {
				streams = append(streams, fmt.Sprintf("%s@%s", lower, streamSuffix(cfg.Exchange, interval)))
			}
		}
	}
	return streams
}
