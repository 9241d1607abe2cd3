// Package risk implements pre-trade order validation and continuous
// portfolio monitoring: exposure limits, margin sufficiency, concentration,
// velocity, and liquidation/margin-call triggers, per spec.md §4.8.
package risk

import (
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Severity orders risk factors for display and for the assessment's overall
// risk level. It does not by itself decide whether an order is rejected —
// see RiskFactor.Reject.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// RiskLevel is the overall severity of a RiskAssessment — the maximum
// severity among its factors.
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "LOW"
	RiskLevelMedium  RiskLevel = "MEDIUM"
	RiskLevelHigh    RiskLevel = "HIGH"
	RiskLevelExtreme RiskLevel = "EXTREME"
)

func riskLevelFor(s Severity) RiskLevel {
	switch s {
	case SeverityMedium:
		return RiskLevelMedium
	case SeverityHigh:
		return RiskLevelHigh
	case SeverityCritical:
		return RiskLevelExtreme
	default:
		return RiskLevelLow
	}
}

// RiskFactor records one check's contribution to a RiskAssessment. Reject
// marks the check as one of the hard-rejecting ones (blocked/allowlist
// symbol, order value over limit, position limit, insufficient margin,
// order rate, system exposure) per spec.md §4.8 and
// original_source's risk_engine.rs; Severity alone does not decide
// rejection — symbol concentration and high volatility are High/Medium
// factors that never reject.
type RiskFactor struct {
	Type        string
	Severity    Severity
	Reject      bool
	Value       money.Money
	Threshold   money.Money
	Description string
}

// RiskAssessment is validate_order's result. A Reject factor means the
// order was hard-rejected; ValidateOrder returns an error in that case in
// addition to the assessment.
type RiskAssessment struct {
	OverallRisk     RiskLevel
	Factors         []RiskFactor
	Recommendations []string
	MaxAllowedSize  money.Money
	RequiredMargin  money.Money
}

// UserRiskProfile is one user's configured risk limits.
type UserRiskProfile struct {
	UserID               string
	IsActive             bool
	MaxOrderValue        money.Money
	MaxPositionValue     money.Money
	MaxDailyLoss         money.Money
	MaxLeverage          money.Money
	AllowedSymbols       []model.Symbol // nil means no allowlist restriction
	BlockedSymbols       []model.Symbol
	MaxOrdersPerMinute   int
	MarginCallThreshold  money.Money // margin_ratio at or below which a MarginCall fires
	LiquidationThreshold money.Money // margin_ratio at or below which a position is liquidated; < MarginCallThreshold
}

// SystemLimits are the system-wide aggregate thresholds, independent of any
// one user's profile.
type SystemLimits struct {
	MaxTotalExposure       money.Money
	MaxSymbolConcentration money.Money // fraction of total exposure, e.g. 0.20
	VolatilityThreshold    money.Money // fraction, e.g. 0.50
	AutoMarginCall         bool        // if true, a MarginCall also triggers automatic action (left to the caller)
}

// RiskEventType discriminates RiskEvent's cause.
type RiskEventType string

const (
	EventPositionLimitExceeded RiskEventType = "POSITION_LIMIT_EXCEEDED"
	EventSystemExposureExceeded RiskEventType = "SYSTEM_EXPOSURE_EXCEEDED"
	EventConcentrationRisk     RiskEventType = "CONCENTRATION_RISK"
	EventMarginCall            RiskEventType = "MARGIN_CALL"
	EventLiquidation           RiskEventType = "LIQUIDATION"
)

// RiskEvent is one entry in the in-memory risk event ring (max 1000, per
// spec.md §4.8).
type RiskEvent struct {
	ID        uuid.UUID
	Type      RiskEventType
	UserID    string
	Symbol    *model.Symbol
	Severity  Severity
	Message   string
	Timestamp time.Time
}

// maxRiskEvents bounds the in-memory ring named in spec.md §4.8.
const maxRiskEvents = 1000
