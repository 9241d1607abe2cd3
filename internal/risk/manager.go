package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Manager holds user risk profiles and system-wide limits, runs pre-trade
// validation synchronously for the submitting caller, and exposes a
// periodic monitor for aggregate exposure and liquidation checks.
//
// Concurrency discipline follows spec.md §5: validate_order reads snapshot
// state through a read lock; the monitor takes the write lock only while
// swapping the aggregate totals.
type Manager struct {
	logger *slog.Logger

	mu              sync.RWMutex
	userProfiles    map[string]UserRiskProfile
	systemLimits    SystemLimits
	totalExposure   money.Money
	symbolExposure  map[string]money.Money // keyed by Symbol.Canonical()
	userExposure    map[string]money.Money
	volatility      map[string]money.Money // keyed by Symbol.Canonical()
	orderTimestamps map[string][]time.Time // keyed by userID, recent order times for velocity check
	events          []RiskEvent
}

// NewManager builds a Manager with the given system-wide limits. User
// profiles are registered separately via SetUserRiskProfile.
func NewManager(limits SystemLimits, logger *slog.Logger) *Manager {
	return &Manager{
		logger:          logger.With("component", "risk"),
		userProfiles:    make(map[string]UserRiskProfile),
		systemLimits:    limits,
		totalExposure:   money.Zero,
		symbolExposure:  make(map[string]money.Money),
		userExposure:    make(map[string]money.Money),
		volatility:      make(map[string]money.Money),
		orderTimestamps: make(map[string][]time.Time),
	}
}

// SetUserRiskProfile registers or replaces a user's risk profile.
func (m *Manager) SetUserRiskProfile(profile UserRiskProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userProfiles[profile.UserID] = profile
}

// UserRiskProfile returns the registered profile for userID, if any.
func (m *Manager) UserRiskProfile(userID string) (UserRiskProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.userProfiles[userID]
	return p, ok
}

// SetVolatility records the current volatility fraction for symbol, used by
// validate_order's step 9 and the monitor's VolatilitySpike check.
func (m *Manager) SetVolatility(symbol model.Symbol, fraction money.Money) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volatility[symbol.Canonical()] = fraction
}

// ExposureSnapshot reports the monitor's current aggregate exposure
// totals, for the gateway/dashboard accessor spec.md §4.8 calls for
// alongside RecentEvents.
type ExposureSnapshot struct {
	TotalExposure    money.Money
	MaxTotalExposure money.Money
	SymbolExposure   map[string]money.Money
	UserExposure     map[string]money.Money
	RegisteredUsers  int
}

// ExposureSnapshot returns a copy of the monitor's current exposure state.
func (m *Manager) ExposureSnapshot() ExposureSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbolExposure := make(map[string]money.Money, len(m.symbolExposure))
	for k, v := range m.symbolExposure {
		symbolExposure[k] = v
	}
	userExposure := make(map[string]money.Money, len(m.userExposure))
	for k, v := range m.userExposure {
		userExposure[k] = v
	}
	return ExposureSnapshot{
		TotalExposure:    m.totalExposure,
		MaxTotalExposure: m.systemLimits.MaxTotalExposure,
		SymbolExposure:   symbolExposure,
		UserExposure:     userExposure,
		RegisteredUsers:  len(m.userProfiles),
	}
}

// RecentEvents returns the n most recently appended risk events, newest
// first. Grounded on the original implementation's get_recent_events
// accessor over its risk event history.
func (m *Manager) RecentEvents(n int) []RiskEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.events) {
		n = len(m.events)
	}
	out := make([]RiskEvent, n)
	for i := 0; i < n; i++ {
		out[i] = m.events[len(m.events)-1-i]
	}
	return out
}

// appendEvent pushes event onto the ring, trimming to maxRiskEvents, and
// logs it. Caller must hold m.mu for writing.
func (m *Manager) appendEvent(event RiskEvent) {
	m.events = append(m.events, event)
	if len(m.events) > maxRiskEvents {
		m.events = m.events[len(m.events)-maxRiskEvents:]
	}
	m.logger.Warn("risk event",
		"type", event.Type, "severity", event.Severity.String(),
		"user", event.UserID, "message", event.Message)
}

// triggerEvent is the locked entry point used outside of a section that
// already holds the write lock.
func (m *Manager) triggerEvent(eventType RiskEventType, userID string, symbol *model.Symbol, severity Severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEvent(RiskEvent{
		ID: uuid.New(), Type: eventType, UserID: userID, Symbol: symbol,
		Severity: severity, Message: message, Timestamp: time.Now().UTC(),
	})
}
