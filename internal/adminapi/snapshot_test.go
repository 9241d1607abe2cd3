package adminapi

import (
	"testing"

	"tradecore/internal/execution"
	"tradecore/internal/risk"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

type fakeProvider struct {
	positions []*model.Position
	exposure  risk.ExposureSnapshot
	events    []risk.RiskEvent
	venues    map[string]execution.VenueStats
	names     []string
}

func (f *fakeProvider) Positions() []*model.Position { return f.positions }
func (f *fakeProvider) RiskEvents(n int) []risk.RiskEvent {
	if n > len(f.events) {
		n = len(f.events)
	}
	return f.events[:n]
}
func (f *fakeProvider) RiskExposure() risk.ExposureSnapshot { return f.exposure }
func (f *fakeProvider) VenueStats(name string) (execution.VenueStats, bool) {
	s, ok := f.venues[name]
	return s, ok
}
func (f *fakeProvider) VenueNames() []string { return f.names }

func TestBuildSnapshotIncludesPositionsRiskAndVenues(t *testing.T) {
	t.Parallel()

	pos, err := model.NewPosition("owner-1", model.NewSymbol("BTC", "USDT"), model.PositionLong, money.MustParse("1"), money.MustParse("100"), money.MustParse("10"), money.MustParse("5"))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}

	provider := &fakeProvider{
		positions: []*model.Position{pos},
		exposure: risk.ExposureSnapshot{
			TotalExposure:    money.MustParse("1000"),
			MaxTotalExposure: money.MustParse("10000"),
			SymbolExposure:   map[string]money.Money{"BTC-USDT": money.MustParse("1000")},
			RegisteredUsers:  1,
		},
		venues: map[string]execution.VenueStats{
			"INTERNAL": {TotalOrders: 5, SuccessfulExecutions: 4, FailedExecutions: 1, TotalVolume: money.MustParse("500"), TotalFees: money.MustParse("1")},
		},
		names: []string{"INTERNAL"},
	}

	snap := BuildSnapshot(provider)

	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(snap.Positions))
	}
	if snap.Positions[0].OwnerID != "owner-1" {
		t.Errorf("owner = %q, want owner-1", snap.Positions[0].OwnerID)
	}
	if snap.Risk.RegisteredUsers != 1 {
		t.Errorf("registered users = %d, want 1", snap.Risk.RegisteredUsers)
	}
	if len(snap.Venues) != 1 || snap.Venues[0].Name != "INTERNAL" {
		t.Fatalf("venues = %+v, want one INTERNAL entry", snap.Venues)
	}
	if snap.Venues[0].TotalOrders != 5 {
		t.Errorf("total orders = %d, want 5", snap.Venues[0].TotalOrders)
	}
}

func TestBuildSnapshotSkipsVenuesWithoutStats(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		exposure: risk.ExposureSnapshot{TotalExposure: money.Zero, MaxTotalExposure: money.Zero},
		venues:   map[string]execution.VenueStats{},
		names:    []string{"UNKNOWN"},
	}

	snap := BuildSnapshot(provider)
	if len(snap.Venues) != 0 {
		t.Fatalf("venues = %+v, want none", snap.Venues)
	}
}
