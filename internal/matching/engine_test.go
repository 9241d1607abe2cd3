package matching

import (
	"testing"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

func TestEngineRoutesOrdersToPerSymbolBooks(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultFeeSchedule(), discardLogger())

	btc := model.NewSymbol("BTC", "USDT")
	eth := model.NewSymbol("ETH", "USDT")

	btcAsk := limitOrder(t, model.Sell, "1", "100")
	btcAsk.Symbol = btc
	ethAsk := limitOrder(t, model.Sell, "1", "10")
	ethAsk.Symbol = eth

	if _, err := e.PlaceOrder(btcAsk); err != nil {
		t.Fatalf("PlaceOrder(btcAsk) error = %v", err)
	}
	if _, err := e.PlaceOrder(ethAsk); err != nil {
		t.Fatalf("PlaceOrder(ethAsk) error = %v", err)
	}

	btcBuy := marketOrder(t, model.Buy, "1")
	btcBuy.Symbol = btc
	trades, err := e.PlaceOrder(btcBuy)
	if err != nil {
		t.Fatalf("PlaceOrder(btcBuy) error = %v", err)
	}
	if len(trades) != 1 || !trades[0].Price.Equal(money.MustParse("100")) {
		t.Fatalf("trades = %+v, want one fill at 100 (BTC book only)", trades)
	}

	if _, ok := e.BookStats(eth); !ok {
		t.Fatal("BookStats(eth) missing, want ETH book created by PlaceOrder(ethAsk)")
	}
	ethStats, _ := e.BookStats(eth)
	if ethStats.TotalTrades != 0 {
		t.Errorf("ETH book TotalTrades = %d, want 0 (untouched by BTC order)", ethStats.TotalTrades)
	}
}

func TestEngineCancelOrderUpdatesStoreAndBook(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultFeeSchedule(), discardLogger())
	symbol := model.NewSymbol("BTC", "USDT")

	order := limitOrder(t, model.Buy, "1", "100")
	order.Symbol = symbol
	if _, err := e.PlaceOrder(order); err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}

	if err := e.CancelOrder(symbol, order.ID, model.Buy, money.MustParse("100")); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	stored, ok := e.store.Get(symbol, order.ID)
	if !ok {
		t.Fatal("order missing from store after cancel")
	}
	if stored.Status != model.OrderStatusCancelled {
		t.Errorf("stored.Status = %v, want Cancelled", stored.Status)
	}
}

func TestEngineCancelUnknownOrderReturnsNotFound(t *testing.T) {
	t.Parallel()
	e := NewEngine(DefaultFeeSchedule(), discardLogger())
	symbol := model.NewSymbol("BTC", "USDT")

	order := limitOrder(t, model.Buy, "1", "100")
	err := e.CancelOrder(symbol, order.ID, model.Buy, money.MustParse("100"))
	if err == nil {
		t.Fatal("CancelOrder() error = nil, want ErrOrderNotFound for unregistered order")
	}
}
