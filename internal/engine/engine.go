// Package engine is the central orchestrator of the trading engine binary.
//
// It wires together the matching engine, the risk manager, the execution
// router and the event bus:
//
//  1. Subscribes to trading.orders for incoming order requests.
//  2. Runs each through risk.ValidateOrder before routing it.
//  3. Submits accepted orders through the execution.Router and applies
//     resulting fills to the in-memory position book, persisting via
//     internal/store.
//  4. Runs a periodic monitor loop that recomputes aggregate exposure,
//     checks margin calls and liquidations, and auto-closes liquidatable
//     positions through the router.
//  5. Sweeps the matching engine for expired resting orders.
//
// Lifecycle: New() → Start() → [runs until Stop()].
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/eventbus"
	"tradecore/internal/execution"
	"tradecore/internal/matching"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Config tunes the orchestrator's background loops.
type Config struct {
	MonitorInterval        time.Duration
	SweepInterval          time.Duration
	DefaultAvailableMargin money.Money
}

// DefaultConfig returns reasonable interval defaults.
func DefaultConfig() Config {
	return Config{
		MonitorInterval:        5 * time.Second,
		SweepInterval:          time.Second,
		DefaultAvailableMargin: money.MustParse("100000"),
	}
}

// OrderRequest is the wire shape consumed off eventbus.TopicTradingOrders.
type OrderRequest struct {
	OwnerID       string                    `json:"owner_id"`
	Symbol        string                    `json:"symbol"`
	Type          model.OrderType           `json:"type"`
	Side          model.Side                `json:"side"`
	Quantity      money.Money               `json:"quantity"`
	Price         *money.Money              `json:"price,omitempty"`
	StopPrice     *money.Money              `json:"stop_price,omitempty"`
	TIF           model.TimeInForce         `json:"tif"`
	ExpiresAt     *time.Time                `json:"expires_at,omitempty"`
	ClientOrderID string                    `json:"client_order_id,omitempty"`
	Strategy      execution.RoutingStrategy `json:"strategy,omitempty"`
}

// positionKey identifies one owner's position in one symbol.
func positionKey(ownerID string, symbol model.Symbol) string {
	return ownerID + "|" + symbol.Canonical()
}

// Engine orchestrates matching, risk and execution for the trading engine
// binary.
type Engine struct {
	cfg      Config
	matching *matching.Engine
	risk     *risk.Manager
	router   *execution.Router
	bus      *eventbus.Bus
	store    *store.Store
	logger   *slog.Logger

	mu       sync.RWMutex
	book     map[string]*model.Position // keyed by positionKey
	margins  map[string]money.Money     // keyed by ownerID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine and restores any persisted positions into its
// in-memory book.
func New(cfg Config, matchingEngine *matching.Engine, riskMgr *risk.Manager, router *execution.Router, bus *eventbus.Bus, positions *store.Store, logger *slog.Logger) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		matching: matchingEngine,
		risk:     riskMgr,
		router:   router,
		bus:      bus,
		store:    positions,
		logger:   logger.With("component", "trading-engine"),
		book:     make(map[string]*model.Position),
		margins:  make(map[string]money.Money),
		ctx:      ctx,
		cancel:   cancel,
	}

	restored, err := positions.LoadAll()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("engine: restore positions: %w", err)
	}
	for _, p := range restored {
		e.book[positionKey(p.OwnerID, p.Symbol)] = p
	}
	logger.Info("restored positions from store", "count", len(restored))

	return e, nil
}

// SetAvailableMargin sets ownerID's available margin balance, read by
// ValidateOrder on every order from that owner.
func (e *Engine) SetAvailableMargin(ownerID string, amount money.Money) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.margins[ownerID] = amount
}

func (e *Engine) availableMargin(ownerID string) money.Money {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if m, ok := e.margins[ownerID]; ok {
		return m
	}
	return e.cfg.DefaultAvailableMargin
}

// Start launches the order-consumption loop, the risk monitor loop and the
// expired-order sweep loop.
func (e *Engine) Start() error {
	orders, err := e.bus.Subscribe(e.ctx, eventbus.TopicTradingOrders)
	if err != nil {
		return fmt.Errorf("engine: subscribe trading.orders: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeOrders(orders)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.monitorLoop()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sweepLoop()
	}()

	return nil
}

// Stop cancels all background loops and waits for them to exit.
func (e *Engine) Stop() {
	e.logger.Info("trading engine shutting down")
	e.cancel()
	e.wg.Wait()
	e.logger.Info("trading engine shutdown complete")
}

func (e *Engine) consumeOrders(envelopes <-chan eventbus.Envelope) {
	for envelope := range envelopes {
		var req OrderRequest
		if err := envelope.Unmarshal(&req); err != nil {
			e.logger.Warn("dropping malformed order request", "error", err)
			continue
		}
		e.handleOrderRequest(req)
	}
}

func (e *Engine) handleOrderRequest(req OrderRequest) {
	symbol, err := model.ParseSymbol(req.Symbol)
	if err != nil {
		e.logger.Warn("order request: invalid symbol", "symbol", req.Symbol, "error", err)
		return
	}

	order, err := model.NewOrder(req.OwnerID, symbol, req.Type, req.Side, req.Quantity, req.Price, req.StopPrice, req.TIF, req.ExpiresAt, req.ClientOrderID)
	if err != nil {
		e.logger.Warn("order request rejected", "owner", req.OwnerID, "error", err)
		e.publishRiskAlert(req.OwnerID, symbol, "order rejected: "+err.Error())
		return
	}

	referencePrice := money.Zero
	if order.Price != nil {
		referencePrice = *order.Price
	} else if bid, ask := e.matching.BestBidAsk(symbol); bid != nil && ask != nil {
		referencePrice = bid.Add(*ask).Div(money.NewFromInt(2))
	}

	e.mu.RLock()
	existing, hasPosition := e.book[positionKey(req.OwnerID, symbol)]
	e.mu.RUnlock()

	currentPositionValue := money.Zero
	if hasPosition {
		currentPositionValue = existing.MarkPrice.Mul(existing.Size)
	}

	assessment, err := e.risk.ValidateOrder(order, referencePrice, currentPositionValue, e.availableMargin(req.OwnerID))
	if err != nil {
		e.logger.Warn("order failed risk validation", "owner", req.OwnerID, "symbol", symbol, "error", err)
		e.publishRiskAlert(req.OwnerID, symbol, err.Error())
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = execution.BestPrice
	}

	result, err := e.router.ExecuteOrder(e.ctx, order, strategy)
	if err != nil {
		e.logger.Error("order execution failed", "owner", req.OwnerID, "symbol", symbol, "error", err)
		e.publishRiskAlert(req.OwnerID, symbol, "execution failed: "+err.Error())
		return
	}

	e.applyFills(order, symbol, assessment.RequiredMargin, result)

	if err := e.bus.PublishEvent(e.ctx, eventbus.TopicTradingTrades, "tradingengine", "order.executed", result, nil); err != nil {
		e.logger.Warn("publish trade event failed", "error", err)
	}
}

// applyFills folds result's fills into the owner's position book, creating
// a new position, adding to an existing same-side one, or partially/fully
// closing an opposite-side one. A fill that exceeds an opposite-side
// position's remaining size closes it and opens the remainder as a new
// position on the other side (a position flip).
func (e *Engine) applyFills(order *model.Order, symbol model.Symbol, margin money.Money, result *execution.ExecutionResult) {
	if !result.FilledQuantity.IsPositive() || result.AvgPrice == nil {
		return
	}

	key := positionKey(order.OwnerID, symbol)
	wantSide := model.PositionSideFromOrderSide(order.Side)
	remaining := result.FilledQuantity

	e.mu.RLock()
	pos, ok := e.book[key]
	e.mu.RUnlock()

	if ok && pos.Side != wantSide {
		closeSize := remaining
		if closeSize.GreaterThan(pos.Size) {
			closeSize = pos.Size
		}
		if _, err := pos.PartialClose(closeSize, *result.AvgPrice); err != nil {
			e.logger.Error("partial close failed", "owner", order.OwnerID, "symbol", symbol, "error", err)
			return
		}
		remaining = remaining.Sub(closeSize)
		if pos.Status == model.PositionClosed {
			e.mu.Lock()
			delete(e.book, key)
			e.mu.Unlock()
		}
		e.persistPosition(pos)
		ok = false // the remainder, if any, opens a fresh position below
	}

	if !remaining.IsPositive() {
		return
	}

	if ok {
		pos.AddToPosition(remaining, *result.AvgPrice, margin)
		e.persistPosition(pos)
		return
	}

	newPos, err := model.NewPosition(order.OwnerID, symbol, wantSide, remaining, *result.AvgPrice, margin, money.NewFromInt(1))
	if err != nil {
		e.logger.Error("open position failed", "owner", order.OwnerID, "symbol", symbol, "error", err)
		return
	}
	e.mu.Lock()
	e.book[key] = newPos
	e.mu.Unlock()
	e.persistPosition(newPos)
}

func (e *Engine) persistPosition(pos *model.Position) {
	if err := e.store.SavePosition(pos); err != nil {
		e.logger.Error("persist position failed", "owner", pos.OwnerID, "symbol", pos.Symbol, "error", err)
	}
	if err := e.bus.PublishEvent(e.ctx, eventbus.TopicTradingPositions, "tradingengine", "position.updated", pos, nil); err != nil {
		e.logger.Warn("publish position event failed", "error", err)
	}
}

func (e *Engine) publishRiskAlert(ownerID string, symbol model.Symbol, message string) {
	payload := map[string]string{"owner_id": ownerID, "symbol": symbol.Canonical(), "message": message}
	if err := e.bus.PublishEvent(e.ctx, eventbus.TopicRiskAlerts, "tradingengine", "risk.alert", payload, nil); err != nil {
		e.logger.Warn("publish risk alert failed", "error", err)
	}
}

func (e *Engine) snapshotPositions() []*model.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make([]*model.Position, 0, len(e.book))
	for _, p := range e.book {
		snapshot = append(snapshot, p)
	}
	return snapshot
}

// Positions returns a snapshot of every open position, for the admin API's
// dashboard accessor.
func (e *Engine) Positions() []*model.Position {
	return e.snapshotPositions()
}

// RiskEvents returns the n most recent risk events the engine's risk
// manager has recorded.
func (e *Engine) RiskEvents(n int) []risk.RiskEvent {
	return e.risk.RecentEvents(n)
}

// RiskExposure returns the risk manager's current aggregate exposure
// snapshot.
func (e *Engine) RiskExposure() risk.ExposureSnapshot {
	return e.risk.ExposureSnapshot()
}

// VenueStats returns the execution router's running statistics for name.
func (e *Engine) VenueStats(name string) (execution.VenueStats, bool) {
	return e.router.VenueStats(name)
}

// VenueNames returns the names of every venue the execution router
// currently has registered.
func (e *Engine) VenueNames() []string {
	return e.router.VenueNames()
}

// monitorLoop periodically marks every open position to the matching
// engine's current mid price, then runs the risk manager's aggregate
// exposure, margin-call and liquidation checks (spec.md §4.8). Positions
// flagged for liquidation are closed at mark price through the router.
func (e *Engine) monitorLoop() {
	ticker := time.NewTicker(e.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runMonitorTick()
		}
	}
}

func (e *Engine) runMonitorTick() {
	positions := e.snapshotPositions()
	for _, p := range positions {
		if bid, ask := e.matching.BestBidAsk(p.Symbol); bid != nil && ask != nil {
			p.UpdateMark(bid.Add(*ask).Div(money.NewFromInt(2)))
		}
	}

	e.risk.UpdateMonitor(positions)
	e.risk.CheckMarginCalls(positions)

	for _, id := range e.risk.CheckLiquidations(positions) {
		e.liquidate(id, positions)
	}
}

func (e *Engine) liquidate(positionID uuid.UUID, positions []*model.Position) {
	for _, p := range positions {
		if p.ID != positionID {
			continue
		}
		closeSide := p.Side.ToCloseSide()
		order, err := model.NewOrder(p.OwnerID, p.Symbol, model.OrderTypeMarket, closeSide, p.Size, nil, nil, model.TIFGTC, nil, "")
		if err != nil {
			e.logger.Error("liquidation order build failed", "position", p.ID, "error", err)
			return
		}
		result, err := e.router.ExecuteOrder(e.ctx, order, execution.FastestExecution)
		if err != nil {
			e.logger.Error("liquidation execution failed", "position", p.ID, "error", err)
			return
		}
		e.applyFills(order, p.Symbol, money.Zero, result)
		e.logger.Warn("position liquidated", "owner", p.OwnerID, "symbol", p.Symbol, "position", p.ID)
		return
	}
}

// sweepLoop periodically removes expired resting orders from every book.
func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			if expired := e.matching.SweepExpired(now); len(expired) > 0 {
				e.logger.Info("swept expired orders", "count", len(expired))
			}
		}
	}
}
