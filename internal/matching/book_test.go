package matching

import (
	"log/slog"
	"testing"
	"time"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testSymbol() model.Symbol { return model.NewSymbol("BTC", "USDT") }

func limitOrder(t *testing.T, side model.Side, qty, price string) *model.Order {
	t.Helper()
	p := money.MustParse(price)
	order, err := model.NewOrder("u1", testSymbol(), model.OrderTypeLimit, side, money.MustParse(qty), &p, nil, model.TIFGTC, nil, "")
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}
	return order
}

func marketOrder(t *testing.T, side model.Side, qty string) *model.Order {
	t.Helper()
	order, err := model.NewOrder("u2", testSymbol(), model.OrderTypeMarket, side, money.MustParse(qty), nil, nil, model.TIFGTC, nil, "")
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}
	return order
}

func TestMarketBuyAgainstTwoAskLevels(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	ask1 := limitOrder(t, model.Sell, "1", "100")
	ask2 := limitOrder(t, model.Sell, "1", "101")
	if _, err := ob.Submit(ask1); err != nil {
		t.Fatalf("Submit(ask1) error = %v", err)
	}
	if _, err := ob.Submit(ask2); err != nil {
		t.Fatalf("Submit(ask2) error = %v", err)
	}

	buy := marketOrder(t, model.Buy, "1.5")
	trades, err := ob.Submit(buy)
	if err != nil {
		t.Fatalf("Submit(buy) error = %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if !trades[0].Price.Equal(money.MustParse("100")) {
		t.Errorf("trades[0].Price = %s, want 100", trades[0].Price)
	}
	if !trades[0].Quantity.Equal(money.MustParse("1")) {
		t.Errorf("trades[0].Quantity = %s, want 1", trades[0].Quantity)
	}
	if !trades[1].Price.Equal(money.MustParse("101")) {
		t.Errorf("trades[1].Price = %s, want 101", trades[1].Price)
	}
	if !trades[1].Quantity.Equal(money.MustParse("0.5")) {
		t.Errorf("trades[1].Quantity = %s, want 0.5", trades[1].Quantity)
	}
	if buy.Status != model.OrderStatusFilled {
		t.Errorf("buy.Status = %v, want Filled", buy.Status)
	}
	if ask2.RemainingQuantity().String() != "0.5" {
		t.Errorf("ask2 remaining = %s, want 0.5", ask2.RemainingQuantity())
	}
	if ask2.Status != model.OrderStatusPartiallyFilled {
		t.Errorf("ask2.Status = %v, want PartiallyFilled", ask2.Status)
	}
}

func TestLimitBuyPartiallyRests(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	ask := limitOrder(t, model.Sell, "1", "100")
	if _, err := ob.Submit(ask); err != nil {
		t.Fatalf("Submit(ask) error = %v", err)
	}

	buy := limitOrder(t, model.Buy, "2", "100")
	trades, err := ob.Submit(buy)
	if err != nil {
		t.Fatalf("Submit(buy) error = %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if buy.Status != model.OrderStatusPartiallyFilled {
		t.Errorf("buy.Status = %v, want PartiallyFilled", buy.Status)
	}
	if buy.RemainingQuantity().String() != "1" {
		t.Errorf("buy remaining = %s, want 1", buy.RemainingQuantity())
	}

	bid, ask2 := ob.BestBidAsk()
	if ask2 != nil {
		t.Errorf("best ask = %v, want nil (level fully consumed)", ask2)
	}
	if bid == nil || !bid.Equal(money.MustParse("100")) {
		t.Errorf("best bid = %v, want 100 (remainder resting)", bid)
	}
}

func TestLimitBuyDoesNotCrossBelowPrice(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	ask := limitOrder(t, model.Sell, "1", "105")
	if _, err := ob.Submit(ask); err != nil {
		t.Fatalf("Submit(ask) error = %v", err)
	}

	buy := limitOrder(t, model.Buy, "1", "100")
	trades, err := ob.Submit(buy)
	if err != nil {
		t.Fatalf("Submit(buy) error = %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("trades = %d, want 0 (ask price above limit)", len(trades))
	}
	if buy.Status != model.OrderStatusPending {
		t.Errorf("buy.Status = %v, want Pending", buy.Status)
	}
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	order := limitOrder(t, model.Buy, "1", "100")
	if _, err := ob.Submit(order); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !ob.Cancel(order.ID, model.Buy, money.MustParse("100")) {
		t.Fatal("Cancel() = false, want true")
	}
	if ob.Cancel(order.ID, model.Buy, money.MustParse("100")) {
		t.Error("second Cancel() = true, want false (already removed)")
	}
	bid, _ := ob.BestBidAsk()
	if bid != nil {
		t.Errorf("best bid = %v, want nil after cancel", bid)
	}
}

func TestSweepExpiredRemovesOnlyPastOrders(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expiring := limitOrder(t, model.Buy, "1", "100")
	expiring.ExpiresAt = &past
	expiring.TIF = model.TIFGTD

	fresh := limitOrder(t, model.Buy, "1", "99")
	fresh.ExpiresAt = &future
	fresh.TIF = model.TIFGTD

	if _, err := ob.Submit(expiring); err != nil {
		t.Fatalf("Submit(expiring) error = %v", err)
	}
	if _, err := ob.Submit(fresh); err != nil {
		t.Fatalf("Submit(fresh) error = %v", err)
	}

	expiredIDs := ob.SweepExpired(time.Now())
	if len(expiredIDs) != 1 || expiredIDs[0] != expiring.ID {
		t.Fatalf("SweepExpired() = %v, want [%v]", expiredIDs, expiring.ID)
	}
	if expiring.Status != model.OrderStatusExpired {
		t.Errorf("expiring.Status = %v, want Expired", expiring.Status)
	}

	// Idempotent: a second sweep finds nothing new.
	if again := ob.SweepExpired(time.Now()); len(again) != 0 {
		t.Errorf("second SweepExpired() = %v, want empty", again)
	}
}

func TestFeesAppliedAtDefaultRates(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	ask := limitOrder(t, model.Sell, "1", "100")
	if _, err := ob.Submit(ask); err != nil {
		t.Fatalf("Submit(ask) error = %v", err)
	}
	buy := marketOrder(t, model.Buy, "1")
	trades, err := ob.Submit(buy)
	if err != nil {
		t.Fatalf("Submit(buy) error = %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	trade := trades[0]
	if !trade.MakerFee.Equal(money.MustParse("0.01")) {
		t.Errorf("MakerFee = %s, want 0.01 (0.01%% of 100 notional)", trade.MakerFee)
	}
	if !trade.TakerFee.Equal(money.MustParse("0.02")) {
		t.Errorf("TakerFee = %s, want 0.02 (0.02%% of 100 notional)", trade.TakerFee)
	}
}

func TestStatsUpdateOnFill(t *testing.T) {
	t.Parallel()
	ob := NewOrderBook(testSymbol(), DefaultFeeSchedule(), discardLogger())

	ask := limitOrder(t, model.Sell, "2", "100")
	if _, err := ob.Submit(ask); err != nil {
		t.Fatalf("Submit(ask) error = %v", err)
	}
	buy := marketOrder(t, model.Buy, "2")
	if _, err := ob.Submit(buy); err != nil {
		t.Fatalf("Submit(buy) error = %v", err)
	}

	stats := ob.Stats()
	if stats.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", stats.TotalTrades)
	}
	if !stats.TotalVolume.Equal(money.MustParse("2")) {
		t.Errorf("TotalVolume = %s, want 2", stats.TotalVolume)
	}
	if stats.PriceHigh24h == nil || !stats.PriceHigh24h.Equal(money.MustParse("100")) {
		t.Errorf("PriceHigh24h = %v, want 100", stats.PriceHigh24h)
	}
}
