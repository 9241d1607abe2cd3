// Package adminapi exposes the trading engine's internal state — open
// positions, risk events, venue statistics — over REST and a WebSocket
// feed, for the gateway or an operator dashboard to poll (spec.md §4.8's
// RecentEvents accessor is the data source this surfaces).
package adminapi

import (
	"time"

	"tradecore/internal/execution"
	"tradecore/internal/risk"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Snapshot is the full point-in-time view of the trading engine.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Positions []PositionStatus `json:"positions"`
	Risk      RiskStatus       `json:"risk"`
	Venues    []VenueStatus    `json:"venues"`
}

// PositionStatus is the dashboard-facing view of one open position.
type PositionStatus struct {
	OwnerID       string `json:"owner_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	EntryPrice    string `json:"entry_price"`
	MarkPrice     string `json:"mark_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	MarginRatio   string `json:"margin_ratio"`
}

// RiskStatus is the dashboard-facing view of aggregate exposure and
// recent risk events.
type RiskStatus struct {
	TotalExposure    string            `json:"total_exposure"`
	MaxTotalExposure string            `json:"max_total_exposure"`
	SymbolExposure   map[string]string `json:"symbol_exposure"`
	RegisteredUsers  int               `json:"registered_users"`
	RecentEvents     []RiskEventStatus `json:"recent_events"`
}

// RiskEventStatus is the dashboard-facing view of one risk.RiskEvent.
type RiskEventStatus struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// VenueStatus is the dashboard-facing view of one execution.VenueStats.
type VenueStatus struct {
	Name         string  `json:"name"`
	TotalOrders  uint64  `json:"total_orders"`
	SuccessCount uint64  `json:"success_count"`
	FailureCount uint64  `json:"failure_count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	TotalVolume  string  `json:"total_volume"`
	TotalFees    string  `json:"total_fees"`
}

func fmtMoney(m money.Money) string { return m.Decimal.String() }

func positionStatus(p *model.Position) PositionStatus {
	return PositionStatus{
		OwnerID:       p.OwnerID,
		Symbol:        p.Symbol.Canonical(),
		Side:          string(p.Side),
		Size:          fmtMoney(p.Size),
		EntryPrice:    fmtMoney(p.EntryPrice),
		MarkPrice:     fmtMoney(p.MarkPrice),
		UnrealizedPnL: fmtMoney(p.UnrealizedPnL),
		MarginRatio:   fmtMoney(p.MarginRatio),
	}
}

func riskEventStatus(e risk.RiskEvent) RiskEventStatus {
	status := RiskEventStatus{
		Type:      string(e.Type),
		UserID:    e.UserID,
		Severity:  e.Severity.String(),
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
	if e.Symbol != nil {
		status.Symbol = e.Symbol.Canonical()
	}
	return status
}

func riskStatus(exposure risk.ExposureSnapshot, events []risk.RiskEvent) RiskStatus {
	symbolExposure := make(map[string]string, len(exposure.SymbolExposure))
	for k, v := range exposure.SymbolExposure {
		symbolExposure[k] = fmtMoney(v)
	}
	eventStatuses := make([]RiskEventStatus, len(events))
	for i, e := range events {
		eventStatuses[i] = riskEventStatus(e)
	}
	return RiskStatus{
		TotalExposure:    fmtMoney(exposure.TotalExposure),
		MaxTotalExposure: fmtMoney(exposure.MaxTotalExposure),
		SymbolExposure:   symbolExposure,
		RegisteredUsers:  exposure.RegisteredUsers,
		RecentEvents:     eventStatuses,
	}
}

func venueStatus(name string, s execution.VenueStats) VenueStatus {
	return VenueStatus{
		Name:         name,
		TotalOrders:  s.TotalOrders,
		SuccessCount: s.SuccessfulExecutions,
		FailureCount: s.FailedExecutions,
		AvgLatencyMS: s.AvgLatencyMS,
		TotalVolume:  fmtMoney(s.TotalVolume),
		TotalFees:    fmtMoney(s.TotalFees),
	}
}
