package risk

import (
	"github.com/google/uuid"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// UpdateMonitor recomputes aggregate exposure from the given snapshot of
// open positions and fires RiskEvents on threshold breach, per spec.md
// §4.8's continuous-monitoring description. Intended to run on a periodic
// ticker; takes the write lock only while swapping the aggregate totals.
func (m *Manager) UpdateMonitor(positions []*model.Position) {
	totalExposure := money.Zero
	symbolExposure := make(map[string]money.Money)
	userExposure := make(map[string]money.Money)

	for _, p := range positions {
		value := p.MarkPrice.Mul(p.Size)
		totalExposure = totalExposure.Add(value)
		symbolExposure[p.Symbol.Canonical()] = symbolExposure[p.Symbol.Canonical()].Add(value)
		userExposure[p.OwnerID] = userExposure[p.OwnerID].Add(value)
	}

	m.mu.Lock()
	m.totalExposure = totalExposure
	m.symbolExposure = symbolExposure
	m.userExposure = userExposure
	limits := m.systemLimits
	m.mu.Unlock()

	if totalExposure.GreaterThan(limits.MaxTotalExposure) {
		m.triggerEvent(EventSystemExposureExceeded, "", nil, SeverityCritical, "system exposure limit exceeded")
	}

	if !totalExposure.IsPositive() {
		return
	}
	for canonical, exposure := range symbolExposure {
		concentration := exposure.Div(totalExposure)
		if concentration.GreaterThan(limits.MaxSymbolConcentration) {
			symbol, err := model.ParseSymbol(canonical)
			if err != nil {
				continue
			}
			m.triggerEvent(EventConcentrationRisk, "", &symbol, SeverityHigh, "symbol concentration risk for "+canonical)
		}
	}
}

// CheckLiquidations scans positions for margin_ratio at or below each
// owner's liquidation threshold, emits a Liquidation event for each, and
// returns their IDs. The caller (execution router) is responsible for
// actually closing the position at mark price.
func (m *Manager) CheckLiquidations(positions []*model.Position) []uuid.UUID {
	var toLiquidate []uuid.UUID
	for _, p := range positions {
		profile, ok := m.UserRiskProfile(p.OwnerID)
		if !ok {
			continue
		}
		if p.IsLiquidatable(profile.LiquidationThreshold) {
			toLiquidate = append(toLiquidate, p.ID)
			symbol := p.Symbol
			m.triggerEvent(EventLiquidation, p.OwnerID, &symbol, SeverityCritical, "position requires liquidation")
		}
	}
	return toLiquidate
}

// CheckMarginCalls scans positions whose margin_ratio has fallen to or
// below each owner's margin-call threshold (but above the liquidation
// threshold, which CheckLiquidations already handles) and emits a
// MarginCall event for each. It returns the subset that should be acted on
// automatically — only populated when the profile's system limits enable
// AutoMarginCall; otherwise the event is informational only, per spec.md
// §4.8.
func (m *Manager) CheckMarginCalls(positions []*model.Position) []uuid.UUID {
	m.mu.RLock()
	auto := m.systemLimits.AutoMarginCall
	m.mu.RUnlock()

	var autoActed []uuid.UUID
	for _, p := range positions {
		profile, ok := m.UserRiskProfile(p.OwnerID)
		if !ok {
			continue
		}
		if p.IsLiquidatable(profile.LiquidationThreshold) {
			continue // already a Liquidation, not a MarginCall
		}
		if p.MarginRatio.LessThanOrEqual(profile.MarginCallThreshold) {
			symbol := p.Symbol
			m.triggerEvent(EventMarginCall, p.OwnerID, &symbol, SeverityHigh, "position approaching liquidation threshold")
			if auto {
				autoActed = append(autoActed, p.ID)
			}
		}
	}
	return autoActed
}
