package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecore/internal/eventbus"
	"tradecore/internal/execution"
	"tradecore/internal/matching"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	calls chan string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{calls: make(chan string, 16)}
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	select {
	case p.calls <- channel:
	default:
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func testSystemLimits() risk.SystemLimits {
	return risk.SystemLimits{
		MaxTotalExposure:       money.MustParse("1000000"),
		MaxSymbolConcentration: money.MustParse("0.9"),
		VolatilityThreshold:    money.MustParse("10"),
	}
}

func testProfile(userID string) risk.UserRiskProfile {
	return risk.UserRiskProfile{
		UserID:               userID,
		IsActive:             true,
		MaxOrderValue:        money.MustParse("1000000"),
		MaxPositionValue:     money.MustParse("1000000"),
		MaxDailyLoss:         money.MustParse("1000000"),
		MaxLeverage:          money.MustParse("10"),
		MaxOrdersPerMinute:   1000,
		MarginCallThreshold:  money.MustParse("0.05"),
		LiquidationThreshold: money.MustParse("0.01"),
	}
}

func newTestEngine(t *testing.T) (*Engine, *recordingPublisher) {
	t.Helper()

	matchingEngine := matching.NewEngine(matching.DefaultFeeSchedule(), discardLogger())
	riskMgr := risk.NewManager(testSystemLimits(), discardLogger())
	riskMgr.SetUserRiskProfile(testProfile("user-1"))

	router := execution.NewRouter(execution.DefaultConfig(), execution.NewInternalVenue(matchingEngine, matching.DefaultFeeSchedule()), discardLogger())

	pub := newRecordingPublisher()
	bus := eventbus.New(pub, discardLogger(), 1, time.Millisecond)

	positions, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	e, err := New(DefaultConfig(), matchingEngine, riskMgr, router, bus, positions, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, pub
}

func TestHandleOrderRequestOpensPosition(t *testing.T) {
	t.Parallel()

	e, pub := newTestEngine(t)
	symbol, _ := model.ParseSymbol("BTC-USDT")

	restingPrice := money.MustParse("100")
	resting, err := model.NewOrder("counterparty", symbol, model.OrderTypeLimit, model.Sell, money.MustParse("5"), &restingPrice, nil, model.TIFGTC, nil, "")
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if _, err := e.matching.PlaceOrder(resting); err != nil {
		t.Fatalf("PlaceOrder (resting): %v", err)
	}

	price := money.MustParse("100")
	req := OrderRequest{
		OwnerID:  "user-1",
		Symbol:   "BTC-USDT",
		Type:     model.OrderTypeLimit,
		Side:     model.Buy,
		Quantity: money.MustParse("1"),
		Price:    &price,
		TIF:      model.TIFGTC,
		Strategy: execution.FastestExecution,
	}
	e.handleOrderRequest(req)

	e.mu.RLock()
	pos, ok := e.book[positionKey("user-1", symbol)]
	e.mu.RUnlock()

	if !ok {
		t.Fatal("expected a position to be opened")
	}
	if pos.Side != model.PositionLong {
		t.Fatalf("side = %s, want LONG", pos.Side)
	}

	waitForChannel(t, pub.calls, string(eventbus.TopicTradingPositions))
	waitForChannel(t, pub.calls, string(eventbus.TopicTradingTrades))
}

func TestHandleOrderRequestInvalidSymbolIsDropped(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	req := OrderRequest{OwnerID: "user-1", Symbol: "", Type: model.OrderTypeMarket, Side: model.Buy, Quantity: money.MustParse("1")}
	e.handleOrderRequest(req) // must not panic

	if len(e.snapshotPositions()) != 0 {
		t.Fatal("expected no position for a request with an invalid symbol")
	}
}

func TestHandleOrderRequestNoRiskProfileIsRejected(t *testing.T) {
	t.Parallel()

	e, pub := newTestEngine(t)
	price := money.MustParse("100")
	req := OrderRequest{
		OwnerID:  "unknown-user",
		Symbol:   "BTC-USDT",
		Type:     model.OrderTypeLimit,
		Side:     model.Buy,
		Quantity: money.MustParse("1"),
		Price:    &price,
		TIF:      model.TIFGTC,
	}
	e.handleOrderRequest(req)

	if len(e.snapshotPositions()) != 0 {
		t.Fatal("expected no position for an order lacking a risk profile")
	}
	waitForChannel(t, pub.calls, string(eventbus.TopicRiskAlerts))
}

func TestApplyFillsFlipsPositionOnOppositeFill(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	symbol, _ := model.ParseSymbol("BTC-USDT")

	long, err := model.NewOrder("user-1", symbol, model.OrderTypeMarket, model.Buy, money.MustParse("5"), nil, nil, model.TIFGTC, nil, "")
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	price := money.MustParse("100")
	e.applyFills(long, symbol, money.MustParse("10"), &execution.ExecutionResult{
		FilledQuantity: money.MustParse("5"),
		AvgPrice:       &price,
	})

	short, err := model.NewOrder("user-1", symbol, model.OrderTypeMarket, model.Sell, money.MustParse("8"), nil, nil, model.TIFGTC, nil, "")
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	closePrice := money.MustParse("110")
	e.applyFills(short, symbol, money.MustParse("10"), &execution.ExecutionResult{
		FilledQuantity: money.MustParse("8"),
		AvgPrice:       &closePrice,
	})

	e.mu.RLock()
	pos, ok := e.book[positionKey("user-1", symbol)]
	e.mu.RUnlock()

	if !ok {
		t.Fatal("expected a flipped position to remain open")
	}
	if pos.Side != model.PositionShort {
		t.Fatalf("side = %s, want SHORT after flip", pos.Side)
	}
	if !pos.Size.Equal(money.MustParse("3")) {
		t.Fatalf("size = %s, want 3 (8 sold - 5 closed)", pos.Size.Decimal.String())
	}
}

func waitForChannel(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("published channel = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for publish to %q", want)
	}
}
