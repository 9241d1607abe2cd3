package continuity

import (
	"log/slog"
	"testing"

	"tradecore/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// TestGapDetection1mKlines exercises spec.md §8 boundary scenario 3
// verbatim.
func TestGapDetection1mKlines(t *testing.T) {
	t.Parallel()
	d := New(discardLogger())
	key := Key{Exchange: model.ExchangeBinance, Symbol: model.NewSymbol("BTC", "USDT"), Interval: model.Interval1m}

	first := d.Observe(key, 1_640_995_200_000)
	if first.HasGap || first.Quality != model.DataQualityNormal {
		t.Fatalf("first observation = %+v, want no gap (first observation is always Normal)", first)
	}

	second := d.Observe(key, 1_640_995_260_000)
	if second.HasGap || second.Quality != model.DataQualityNormal {
		t.Fatalf("second observation = %+v, want Normal", second)
	}

	third := d.Observe(key, 1_640_995_380_000)
	if !third.HasGap {
		t.Fatal("expected has_gap = true on skipped minute")
	}
	if third.Gap != 120_000 {
		t.Errorf("gap = %d, want 120000", third.Gap)
	}
	if third.Quality != model.DataQualitySuspect {
		t.Errorf("quality = %v, want Suspect", third.Quality)
	}

	stats := d.Stats()
	if stats.TotalChecks != 3 {
		t.Errorf("TotalChecks = %d, want 3", stats.TotalChecks)
	}
	if stats.GapsDetected != 1 {
		t.Errorf("GapsDetected = %d, want 1", stats.GapsDetected)
	}
}

func TestGapDetectionWithinTolerance(t *testing.T) {
	t.Parallel()
	d := New(discardLogger())
	key := Key{Exchange: model.ExchangeOKX, Symbol: model.NewSymbol("ETH", "USDT"), Interval: model.Interval1m}

	d.Observe(key, 1_000_000_000)
	// 4.5s late, within the 5000ms 1m tolerance.
	obs := d.Observe(key, 1_000_000_000+60_000+4_500)
	if obs.HasGap || obs.Quality != model.DataQualityNormal {
		t.Errorf("obs = %+v, want Normal within tolerance", obs)
	}
}

func TestGapDetectionEarlyArrivalIsSuspect(t *testing.T) {
	t.Parallel()
	d := New(discardLogger())
	key := Key{Exchange: model.ExchangeHuobi, Symbol: model.NewSymbol("BTC", "USDT"), Interval: model.Interval1s}

	d.Observe(key, 10_000)
	// arrives 3s early, beyond the 2000ms 1s tolerance — negative gap, still Suspect.
	obs := d.Observe(key, 10_000+1_000-3_000)
	if !obs.HasGap || obs.Quality != model.DataQualitySuspect {
		t.Errorf("obs = %+v, want Suspect on early arrival beyond tolerance", obs)
	}
}

func TestContinuityKeysAreIndependent(t *testing.T) {
	t.Parallel()
	d := New(discardLogger())
	k1 := Key{Exchange: model.ExchangeBinance, Symbol: model.NewSymbol("BTC", "USDT"), Interval: model.Interval1m}
	k2 := Key{Exchange: model.ExchangeBinance, Symbol: model.NewSymbol("ETH", "USDT"), Interval: model.Interval1m}

	d.Observe(k1, 1_000_000)
	obs := d.Observe(k2, 9_999_999)
	if obs.HasGap {
		t.Error("first observation on a distinct key must never report a gap")
	}
}
