package ingest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecore/internal/connector"
	"tradecore/internal/continuity"
	"tradecore/internal/eventbus"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

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

func newTestManager(t *testing.T) (*Manager, *recordingPublisher) {
	t.Helper()
	pub := newRecordingPublisher()
	bus := eventbus.New(pub, discardLogger(), 1, time.Millisecond)
	mgr := New(DefaultConfig(), nil, bus, continuity.New(discardLogger()), discardLogger())
	return mgr, pub
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

func TestManagerHandleRoutesEachEventKindToItsTopic(t *testing.T) {
	t.Parallel()
	mgr, pub := newTestManager(t)

	mgr.handle(connector.Event{Kind: connector.EventTick, Tick: &model.Tick{
		Exchange: model.ExchangeBinance, Symbol: model.NewSymbol("BTC", "USDT"),
		Price: money.MustParse("100"), Quantity: money.MustParse("1"), Timestamp: time.Now(),
	}})
	waitForChannel(t, pub.calls, string(eventbus.TopicMarketTicks))

	mgr.handle(connector.Event{Kind: connector.EventTrade, Trade: &model.MarketTrade{
		Exchange: model.ExchangeBinance, Symbol: model.NewSymbol("BTC", "USDT"),
		Price: money.MustParse("100"), Quantity: money.MustParse("1"), Side: model.Buy, Timestamp: time.Now(),
	}})
	waitForChannel(t, pub.calls, string(eventbus.TopicMarketTrades))
}

func TestManagerHandleKlineTagsContinuityQuality(t *testing.T) {
	t.Parallel()
	mgr, pub := newTestManager(t)

	symbol := model.NewSymbol("BTC", "USDT")
	first := &model.Kline{
		Exchange: model.ExchangeBinance, Symbol: symbol, Interval: model.Interval1m,
		OpenTime: time.UnixMilli(1_000_000), Open: money.MustParse("100"),
	}
	mgr.handle(connector.Event{Kind: connector.EventKline, Kline: first})
	waitForChannel(t, pub.calls, string(eventbus.TopicMarketKlines))
	if first.Quality != model.DataQualityNormal {
		t.Errorf("first.Quality = %v, want Normal (no prior observation)", first.Quality)
	}

	gapped := &model.Kline{
		Exchange: model.ExchangeBinance, Symbol: symbol, Interval: model.Interval1m,
		OpenTime: time.UnixMilli(1_000_000 + 10*60_000), Open: money.MustParse("101"),
	}
	mgr.handle(connector.Event{Kind: connector.EventKline, Kline: gapped})
	waitForChannel(t, pub.calls, string(eventbus.TopicMarketKlines))
	if gapped.Quality != model.DataQualitySuspect {
		t.Errorf("gapped.Quality = %v, want Suspect (10 bar gap)", gapped.Quality)
	}

	if mgr.Stats().Continuity.GapsDetected != 1 {
		t.Errorf("GapsDetected = %d, want 1", mgr.Stats().Continuity.GapsDetected)
	}
}

func TestManagerReadyRequiresAllConnectorsConnected(t *testing.T) {
	t.Parallel()
	mgr, pub := newTestManager(t)
	mgr.sessions = make([]*connector.Session, 2) // two configured connectors, neither reported yet

	if mgr.Ready() {
		t.Fatal("Ready() = true before any connector reported, want false")
	}

	mgr.handle(connector.Event{Kind: connector.EventConnectionStatus, ConnectionStatus: &model.ConnectionStatus{
		Exchange: model.ExchangeBinance, State: model.ConnStateConnected, Timestamp: time.Now(),
	}})
	waitForChannel(t, pub.calls, string(eventbus.TopicSystemEvents))
	if mgr.Ready() {
		t.Fatal("Ready() = true with only one of two connectors connected, want false")
	}

	mgr.handle(connector.Event{Kind: connector.EventConnectionStatus, ConnectionStatus: &model.ConnectionStatus{
		Exchange: model.ExchangeOKX, State: model.ConnStateConnected, Timestamp: time.Now(),
	}})
	waitForChannel(t, pub.calls, string(eventbus.TopicSystemEvents))
	if !mgr.Ready() {
		t.Fatal("Ready() = false after both connectors connected, want true")
	}
}

func TestManagerStatsCountsProcessedEvents(t *testing.T) {
	t.Parallel()
	mgr, pub := newTestManager(t)

	mgr.handle(connector.Event{Kind: connector.EventHeartbeat, Heartbeat: &model.Heartbeat{
		Exchange: model.ExchangeBinance, Timestamp: time.Now(),
	}})
	waitForChannel(t, pub.calls, string(eventbus.TopicSystemEvents))

	if mgr.Stats().TotalProcessed != 1 {
		t.Errorf("TotalProcessed = %d, want 1", mgr.Stats().TotalProcessed)
	}
}
