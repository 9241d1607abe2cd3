package adminapi

import (
	"time"

	"tradecore/internal/execution"
	"tradecore/internal/risk"
	"tradecore/pkg/model"
)

// SnapshotProvider is the view of the trading engine the admin API needs.
// *engine.Engine satisfies this without adminapi importing engine, the
// same inversion the teacher's dashboard used for MarketSnapshotProvider.
type SnapshotProvider interface {
	Positions() []*model.Position
	RiskEvents(n int) []risk.RiskEvent
	RiskExposure() risk.ExposureSnapshot
	VenueStats(name string) (execution.VenueStats, bool)
	VenueNames() []string
}

// BuildSnapshot aggregates current engine state into a Snapshot.
func BuildSnapshot(provider SnapshotProvider) Snapshot {
	positions := provider.Positions()
	positionStatuses := make([]PositionStatus, len(positions))
	for i, p := range positions {
		positionStatuses[i] = positionStatus(p)
	}

	names := provider.VenueNames()
	venues := make([]VenueStatus, 0, len(names))
	for _, name := range names {
		if stats, ok := provider.VenueStats(name); ok {
			venues = append(venues, venueStatus(name, stats))
		}
	}

	return Snapshot{
		Timestamp: time.Now(),
		Positions: positionStatuses,
		Risk:      riskStatus(provider.RiskExposure(), provider.RiskEvents(50)),
		Venues:    venues,
	}
}
