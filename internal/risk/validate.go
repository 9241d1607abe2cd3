package risk

import (
	"fmt"
	"time"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

var eightyPercent = money.MustParse("0.8")

// ValidateOrder runs the nine-step pre-trade pipeline from spec.md §4.8 and
// returns the resulting RiskAssessment. referencePrice is used for market
// orders (which carry no Order.Price); currentPositionValue and
// availableMargin are snapshots the caller reads from the position/account
// store before calling in. A factor marked Reject anywhere in the pipeline
// (order value over limit, position limit, insufficient margin, order
// rate, or system exposure — regardless of its Severity label) causes
// ValidateOrder to return model.ErrRiskViolation alongside the (still
// populated) assessment. Symbol concentration and high volatility are
// factor-only and never reject.
func (m *Manager) ValidateOrder(order *model.Order, referencePrice, currentPositionValue, availableMargin money.Money) (RiskAssessment, error) {
	profile, ok := m.UserRiskProfile(order.OwnerID)
	if !ok {
		return RiskAssessment{}, fmt.Errorf("risk: validate order: %w: no risk profile for user %s", model.ErrRiskViolation, order.OwnerID)
	}
	if !profile.IsActive {
		return RiskAssessment{}, fmt.Errorf("risk: validate order: %w: trading suspended for user %s", model.ErrRiskViolation, order.OwnerID)
	}

	if containsSymbol(profile.BlockedSymbols, order.Symbol) {
		return RiskAssessment{}, fmt.Errorf("risk: validate order: %w: symbol %s is blocked for user %s", model.ErrRiskViolation, order.Symbol, order.OwnerID)
	}
	if profile.AllowedSymbols != nil && !containsSymbol(profile.AllowedSymbols, order.Symbol) {
		return RiskAssessment{}, fmt.Errorf("risk: validate order: %w: symbol %s is not in the allowed list for user %s", model.ErrRiskViolation, order.Symbol, order.OwnerID)
	}

	orderPrice := referencePrice
	if order.Price != nil {
		orderPrice = *order.Price
	}
	orderValue := orderPrice.Mul(order.Quantity)

	var factors []RiskFactor
	var recommendations []string

	// 3. order_value <= max_order_value, MEDIUM warning at 80%.
	if orderValue.GreaterThan(profile.MaxOrderValue) {
		factors = append(factors, RiskFactor{
			Type: "ORDER_VALUE_LIMIT", Severity: SeverityCritical, Reject: true,
			Value: orderValue, Threshold: profile.MaxOrderValue,
			Description: "order value exceeds limit",
		})
	} else {
		warnThreshold := profile.MaxOrderValue.Mul(eightyPercent)
		if orderValue.GreaterThan(warnThreshold) {
			factors = append(factors, RiskFactor{
				Type: "ORDER_VALUE_WARNING", Severity: SeverityMedium,
				Value: orderValue, Threshold: warnThreshold,
				Description: "order value approaching limit",
			})
			recommendations = append(recommendations, "consider reducing order size")
		}
	}

	// 4. current position value + order value <= max_position_value.
	totalPositionValue := currentPositionValue.Add(orderValue)
	if totalPositionValue.GreaterThan(profile.MaxPositionValue) {
		factors = append(factors, RiskFactor{
			Type: "POSITION_LIMIT", Severity: SeverityHigh, Reject: true,
			Value: totalPositionValue, Threshold: profile.MaxPositionValue,
			Description: "total position value exceeds limit",
		})
	}

	// 5. required margin <= available margin.
	requiredMargin := money.Zero
	if profile.MaxLeverage.IsPositive() {
		requiredMargin = orderValue.Div(profile.MaxLeverage)
	}
	if requiredMargin.GreaterThan(availableMargin) {
		factors = append(factors, RiskFactor{
			Type: "INSUFFICIENT_MARGIN", Severity: SeverityCritical, Reject: true,
			Value: availableMargin, Threshold: requiredMargin,
			Description: "insufficient margin for order",
		})
	}

	// 6. orders-per-minute velocity.
	now := time.Now().UTC()
	recentOrders := m.recordAndCountOrders(order.OwnerID, now)
	if profile.MaxOrdersPerMinute > 0 && recentOrders > profile.MaxOrdersPerMinute {
		factors = append(factors, RiskFactor{
			Type: "ORDER_RATE_LIMIT", Severity: SeverityHigh, Reject: true,
			Value: money.NewFromInt(int64(recentOrders)), Threshold: money.NewFromInt(int64(profile.MaxOrdersPerMinute)),
			Description: "order rate limit exceeded",
		})
	}

	// 7 & 8. system exposure and post-trade symbol concentration.
	m.mu.RLock()
	currentTotal := m.totalExposure
	newTotalExposure := m.totalExposure.Add(orderValue)
	symbolExposure := m.symbolExposure[order.Symbol.Canonical()]
	volatility := m.volatility[order.Symbol.Canonical()]
	limits := m.systemLimits
	m.mu.RUnlock()

	if newTotalExposure.GreaterThan(limits.MaxTotalExposure) {
		factors = append(factors, RiskFactor{
			Type: "SYSTEM_EXPOSURE_LIMIT", Severity: SeverityCritical, Reject: true,
			Value: newTotalExposure, Threshold: limits.MaxTotalExposure,
			Description: "system exposure limit exceeded",
		})
	}

	newSymbolExposure := symbolExposure.Add(orderValue)
	if currentTotal.IsPositive() {
		concentration := newSymbolExposure.Div(newTotalExposure)
		if concentration.GreaterThan(limits.MaxSymbolConcentration) {
			factors = append(factors, RiskFactor{
				Type: "SYMBOL_CONCENTRATION", Severity: SeverityHigh,
				Value: concentration, Threshold: limits.MaxSymbolConcentration,
				Description: "symbol concentration risk",
			})
			recommendations = append(recommendations, "consider diversifying across different symbols")
		}
	}

	// 9. volatility — factor only, never a reject.
	if volatility.GreaterThan(limits.VolatilityThreshold) {
		factors = append(factors, RiskFactor{
			Type: "HIGH_VOLATILITY", Severity: SeverityMedium,
			Value: volatility, Threshold: limits.VolatilityThreshold,
			Description: "high market volatility",
		})
		recommendations = append(recommendations, "market volatility is high, consider using limit orders")
	}

	var maxSeverity Severity
	hasReject := false
	for _, f := range factors {
		if f.Severity > maxSeverity {
			maxSeverity = f.Severity
		}
		if f.Reject {
			hasReject = true
		}
	}

	maxAllowedSize := order.Quantity
	if orderPrice.IsPositive() {
		byValue := profile.MaxOrderValue.Div(orderPrice)
		if byValue.LessThan(maxAllowedSize) {
			maxAllowedSize = byValue
		}
	}

	assessment := RiskAssessment{
		OverallRisk:     riskLevelFor(maxSeverity),
		Factors:         factors,
		Recommendations: recommendations,
		MaxAllowedSize:  maxAllowedSize,
		RequiredMargin:  requiredMargin,
	}

	if hasReject {
		return assessment, fmt.Errorf("risk: validate order: %w: a rejecting risk factor is present", model.ErrRiskViolation)
	}
	return assessment, nil
}

// recordAndCountOrders appends now to userID's order-timestamp history,
// prunes entries older than one minute, and returns the resulting count.
func (m *Manager) recordAndCountOrders(userID string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	times := append(m.orderTimestamps[userID], now)
	pruned := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	m.orderTimestamps[userID] = pruned
	return len(pruned)
}

func containsSymbol(symbols []model.Symbol, s model.Symbol) bool {
	for _, sym := range symbols {
		if sym == s {
			return true
		}
	}
	return false
}
