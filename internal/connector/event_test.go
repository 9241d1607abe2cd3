package connector

import (
	"testing"

	"tradecore/pkg/model"
)

func TestCapabilityForBinanceSupportsRestBackfill(t *testing.T) {
	t.Parallel()
	c := CapabilityFor(model.ExchangeBinance)
	if !c.SupportsMarketData() || !c.SupportsRestBackfill() {
		t.Errorf("binance capability = %+v, want both true", c)
	}
}

func TestCapabilityForHuobiLacksRestBackfill(t *testing.T) {
	t.Parallel()
	c := CapabilityFor(model.ExchangeHuobi)
	if !c.SupportsMarketData() {
		t.Error("huobi should support market data")
	}
	if c.SupportsRestBackfill() {
		t.Error("huobi should not support REST backfill")
	}
}
