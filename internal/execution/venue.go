package execution

import (
	"context"
	"fmt"

	"tradecore/internal/matching"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Venue is anything the router can send an order to: the internal matching
// engine or an external exchange connector. Go has no restriction forcing
// an enum-of-implementations the way execution_engine.rs's
// ExchangeConnectorEnum works around Rust's object-safety rules, so this is
// a plain interface any number of venues can implement.
type Venue interface {
	Name() string
	// Fees returns (maker, taker) rates as fractions of notional.
	Fees() (maker, taker money.Money)
	// Quote returns the best bid/ask currently known for symbol. Either may
	// be nil if that side has no resting interest.
	Quote(ctx context.Context, symbol model.Symbol) (bid, ask *money.Money, err error)
	// Submit places order at the venue and returns its outcome.
	Submit(ctx context.Context, order *model.Order) (*ExecutionResult, error)
	// Cancel cancels a previously submitted order by the router's order id.
	Cancel(ctx context.Context, order *model.Order) error
}

// internalVenue routes to the local matching engine, the zero-latency
// venue the router falls back to whenever no external venue is available
// or FastestExecution is requested.
type internalVenue struct {
	engine *matching.Engine
	fees   matching.FeeSchedule
}

// NewInternalVenue wraps engine as a Venue named "INTERNAL".
func NewInternalVenue(engine *matching.Engine, fees matching.FeeSchedule) Venue {
	return &internalVenue{engine: engine, fees: fees}
}

func (v *internalVenue) Name() string { return "INTERNAL" }

func (v *internalVenue) Fees() (maker, taker money.Money) {
	return v.fees.MakerRate, v.fees.TakerRate
}

func (v *internalVenue) Quote(ctx context.Context, symbol model.Symbol) (bid, ask *money.Money, err error) {
	bid, ask = v.engine.BestBidAsk(symbol)
	return bid, ask, nil
}

func (v *internalVenue) Submit(ctx context.Context, order *model.Order) (*ExecutionResult, error) {
	trades, err := v.engine.PlaceOrder(order)
	if err != nil {
		return nil, err
	}
	return resultFromTrades(order, "INTERNAL", trades), nil
}

func (v *internalVenue) Cancel(ctx context.Context, order *model.Order) error {
	if order.Price == nil {
		return fmt.Errorf("execution: cancel order %s: %w: market orders never rest and cannot be cancelled", order.ID, model.ErrInvalidOrder)
	}
	return v.engine.CancelOrder(order.Symbol, order.ID, order.Side, *order.Price)
}

// resultFromTrades aggregates a fill sequence into one ExecutionResult,
// weighting AvgPrice by fill quantity the way execute_internal does in
// execution_engine.rs.
func resultFromTrades(order *model.Order, venue string, trades []*model.Trade) *ExecutionResult {
	filled := money.Zero
	totalFee := money.Zero
	weightedSum := money.Zero

	executions := make([]TradeExecution, 0, len(trades))
	for _, t := range trades {
		filled = filled.Add(t.Quantity)
		totalFee = totalFee.Add(t.TakerFee)
		weightedSum = weightedSum.Add(t.Price.Mul(t.Quantity))
		executions = append(executions, TradeExecution{
			TradeID: t.ID, Price: t.Price, Quantity: t.Quantity, Fee: t.TakerFee, Timestamp: t.ExecutedAt,
		})
	}

	var avgPrice *money.Money
	if filled.IsPositive() {
		p := weightedSum.Div(filled)
		avgPrice = &p
	}

	return &ExecutionResult{
		OrderID:        order.ID,
		Status:         statusFor(order, filled),
		FilledQuantity: filled,
		AvgPrice:       avgPrice,
		TotalFee:       totalFee,
		Venue:          venue,
		Trades:         executions,
	}
}

func statusFor(order *model.Order, filled money.Money) ExecutionStatus {
	switch {
	case filled.GreaterThanOrEqual(order.Quantity):
		return StatusFilled
	case filled.IsPositive():
		return StatusPartiallyFilled
	default:
		return StatusPending
	}
}
