package matching

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// OrderBook is the single-writer, price-time-priority book for one symbol,
// per spec.md §4.6. All mutating methods serialize through mu; fills are
// emitted in the exact order the matching loop produces them.
type OrderBook struct {
	symbol model.Symbol
	fees   FeeSchedule
	logger *slog.Logger

	mu             sync.Mutex
	bids           *book // descending
	asks           *book // ascending
	lastTradePrice *money.Money
	stats          Stats
}

// NewOrderBook builds an empty book for symbol.
func NewOrderBook(symbol model.Symbol, fees FeeSchedule, logger *slog.Logger) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		fees:   fees,
		logger: logger.With("component", "matching", "symbol", symbol.Canonical()),
		bids:   newBook(true),
		asks:   newBook(false),
		stats:  newStats(),
	}
}

// Submit routes order to the market- or limit-order matching logic
// depending on its Type. Only Market and Limit orders are accepted here;
// stop variants are the risk/execution layer's concern before they reach
// the book.
func (ob *OrderBook) Submit(order *model.Order) ([]*model.Trade, error) {
	switch order.Type {
	case model.OrderTypeMarket:
		return ob.submitMarket(order)
	case model.OrderTypeLimit:
		return ob.submitLimit(order)
	default:
		return nil, fmt.Errorf("matching: submit order %s: %w: book only accepts MARKET and LIMIT", order.ID, model.ErrInvalidOrder)
	}
}

func (ob *OrderBook) submitMarket(order *model.Order) ([]*model.Trade, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	opposite := ob.oppositeBook(order.Side)
	trades := ob.match(order, opposite, nil)

	// Market orders never rest: any unfilled remainder is discarded and the
	// order moves straight to a terminal status, whether or not it got a
	// partial fill first.
	if order.RemainingQuantity().IsPositive() {
		_ = order.Cancel()
	}
	return trades, nil
}

func (ob *OrderBook) submitLimit(order *model.Order) ([]*model.Trade, error) {
	if order.Price == nil {
		return nil, fmt.Errorf("matching: submit limit order %s: %w: limit order requires a price", order.ID, model.ErrInvalidOrder)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	limitPrice := *order.Price
	opposite := ob.oppositeBook(order.Side)
	trades := ob.match(order, opposite, &limitPrice)

	if order.RemainingQuantity().IsPositive() {
		same := ob.sameBook(order.Side)
		lvl := same.levelFor(limitPrice)
		lvl.orders = append(lvl.orders, order)
	}
	return trades, nil
}

// match drains the opposite book against order, stopping when order is
// fully filled, the opposite book is empty, or (for limit orders,
// limitPrice != nil) the next level no longer crosses limitPrice.
func (ob *OrderBook) match(order *model.Order, opposite *book, limitPrice *money.Money) []*model.Trade {
	var trades []*model.Trade

	for order.RemainingQuantity().IsPositive() {
		lvl, ok := opposite.best()
		if !ok {
			break
		}
		if limitPrice != nil && !opposite.crossesLimit(lvl.price, *limitPrice) {
			break
		}

		for len(lvl.orders) > 0 && order.RemainingQuantity().IsPositive() {
			maker := lvl.orders[0]
			fillQty := minMoney(order.RemainingQuantity(), maker.RemainingQuantity())
			notional := fillQty.Mul(lvl.price)
			makerFee := ob.fees.makerFee(notional)
			takerFee := ob.fees.takerFee(notional)

			trade := model.NewTrade(ob.symbol, maker.ID, order.ID, lvl.price, fillQty, order.Side, makerFee, takerFee)
			trades = append(trades, trade)

			maker.ApplyFill(fillQty, lvl.price, makerFee)
			order.ApplyFill(fillQty, lvl.price, takerFee)
			ob.stats.recordTrade(lvl.price, fillQty)
			ob.lastTradePrice = &lvl.price

			if maker.RemainingQuantity().IsZero() {
				lvl.orders = lvl.orders[1:]
			}
		}

		if len(lvl.orders) == 0 {
			opposite.levels = removeLevel(opposite.levels, lvl)
		}
	}

	if len(trades) > 0 {
		ob.logger.Debug("matched", "count", len(trades), "taker_order", order.ID)
	}
	return trades
}

func removeLevel(levels []*priceLevel, target *priceLevel) []*priceLevel {
	for i, lvl := range levels {
		if lvl == target {
			return append(levels[:i], levels[i+1:]...)
		}
	}
	return levels
}

func (ob *OrderBook) oppositeBook(side model.Side) *book {
	if side == model.Buy {
		return ob.asks
	}
	return ob.bids
}

func (ob *OrderBook) sameBook(side model.Side) *book {
	if side == model.Buy {
		return ob.bids
	}
	return ob.asks
}

// Cancel removes the resting order identified by (id, side, price). Returns
// whether a removal occurred.
func (ob *OrderBook) Cancel(id uuid.UUID, side model.Side, price money.Money) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.sameBook(side).removeOrder(price, id)
}

// SweepExpired scans both sides for orders with ExpiresAt at or before now,
// removes them, transitions their status to Expired, and returns their ids.
// Idempotent: a second sweep over the same state returns nothing.
func (ob *OrderBook) SweepExpired(now time.Time) []uuid.UUID {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	isExpired := func(o *model.Order) bool {
		if o.ExpiresAt == nil {
			return false
		}
		expired := !o.ExpiresAt.After(now)
		if expired {
			o.Expire()
		}
		return expired
	}

	expired := append(ob.bids.sweepExpired(isExpired), ob.asks.sweepExpired(isExpired)...)
	return expired
}

// BestBidAsk returns the best resting bid and ask prices, if any.
func (ob *OrderBook) BestBidAsk() (bid, ask *money.Money) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if lvl, ok := ob.bids.best(); ok {
		p := lvl.price
		bid = &p
	}
	if lvl, ok := ob.asks.best(); ok {
		p := lvl.price
		ask = &p
	}
	return bid, ask
}

// Stats returns a snapshot of the book's running trade statistics.
func (ob *OrderBook) Stats() Stats {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.stats
}

func minMoney(a, b money.Money) money.Money {
	if a.LessThan(b) {
		return a
	}
	return b
}
