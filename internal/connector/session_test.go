package connector

import (
	"log/slog"
	"testing"
	"time"

	"tradecore/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSessionDispatchValidFrameEmitsEvent(t *testing.T) {
	t.Parallel()
	cfg := Config{Exchange: model.ExchangeBinance, Symbols: []model.Symbol{model.NewSymbol("BTC", "USDT")}}
	s := NewSession(cfg, 4, discardLogger())

	raw := []byte(`{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1640995200000,"s":"BTCUSDT","c":"47000.50","Q":"0.01"}}`)
	s.dispatch(raw)

	select {
	case event := <-s.Events():
		if event.Kind != EventTick {
			t.Errorf("Kind = %v, want EventTick", event.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dispatch to deliver an event")
	}
	if s.ErrorCount() != 0 {
		t.Errorf("ErrorCount = %d, want 0", s.ErrorCount())
	}
}

func TestSessionDispatchMalformedFrameIncrementsErrorCount(t *testing.T) {
	t.Parallel()
	cfg := Config{Exchange: model.ExchangeBinance, Symbols: []model.Symbol{model.NewSymbol("BTC", "USDT")}}
	s := NewSession(cfg, 4, discardLogger())

	s.dispatch([]byte(`not json`))

	if s.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount())
	}
	select {
	case event := <-s.Events():
		t.Errorf("expected no event on parse failure, got %+v", event)
	default:
	}
}

func TestSessionDispatchDoesNotDependOnConfiguredSymbols(t *testing.T) {
	t.Parallel()
	// Configured symbols include neither BTCUSDT nor any overlap; dispatch
	// must still resolve the frame's own symbol from the payload.
	cfg := Config{Exchange: model.ExchangeOKX, Symbols: []model.Symbol{model.NewSymbol("SOL", "USDT")}}
	s := NewSession(cfg, 4, discardLogger())

	raw := []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"last":"47000.50","lastSz":"0.01","ts":"1640995200000"}]}`)
	s.dispatch(raw)

	select {
	case event := <-s.Events():
		if event.Tick.Symbol != model.NewSymbol("BTC", "USDT") {
			t.Errorf("Symbol = %v, want BTCUSDT from the payload, not the configured SOLUSDT", event.Tick.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dispatch to deliver an event")
	}
}
