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

// Engine owns one OrderBook per symbol plus the shared OrderStore, lazily
// creating books on first use. Each symbol's book is its own exclusive
// writer (spec.md §4.6); Engine only serializes the map of books, not the
// matching itself.
type Engine struct {
	fees   FeeSchedule
	logger *slog.Logger
	store  *OrderStore

	mu    sync.RWMutex
	books map[string]*OrderBook // keyed by Symbol.Canonical()
}

// NewEngine builds an Engine using fees for every book it creates.
func NewEngine(fees FeeSchedule, logger *slog.Logger) *Engine {
	return &Engine{
		fees:   fees,
		logger: logger.With("component", "matching-engine"),
		store:  NewOrderStore(),
		books:  make(map[string]*OrderBook),
	}
}

func (e *Engine) bookFor(symbol model.Symbol) *OrderBook {
	canonical := symbol.Canonical()

	e.mu.RLock()
	ob, ok := e.books[canonical]
	e.mu.RUnlock()
	if ok {
		return ob
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ob, ok := e.books[canonical]; ok {
		return ob
	}
	ob = NewOrderBook(symbol, e.fees, e.logger)
	e.books[canonical] = ob
	return ob
}

// PlaceOrder records order in the store and submits it to its symbol's
// book, returning any resulting trades.
func (e *Engine) PlaceOrder(order *model.Order) ([]*model.Trade, error) {
	e.store.Create(order)
	return e.bookFor(order.Symbol).Submit(order)
}

// CancelOrder cancels the resting order identified by (symbol, id, side,
// price) in its book and marks it Cancelled in the store.
func (e *Engine) CancelOrder(symbol model.Symbol, id uuid.UUID, side model.Side, price money.Money) error {
	order, ok := e.store.Get(symbol, id)
	if !ok {
		return fmt.Errorf("matching: cancel order %s: %w", id, model.ErrOrderNotFound)
	}
	if !e.bookFor(symbol).Cancel(id, side, price) {
		return fmt.Errorf("matching: cancel order %s: %w: not resting at given price", id, model.ErrOrderNotFound)
	}
	return order.Cancel()
}

// SweepExpired sweeps every known symbol's book for expired resting orders.
func (e *Engine) SweepExpired(now time.Time) []uuid.UUID {
	e.mu.RLock()
	books := make([]*OrderBook, 0, len(e.books))
	for _, ob := range e.books {
		books = append(books, ob)
	}
	e.mu.RUnlock()

	var expired []uuid.UUID
	for _, ob := range books {
		expired = append(expired, ob.SweepExpired(now)...)
	}
	return expired
}

// BestBidAsk returns symbol's current best resting bid/ask, creating the
// book if it does not yet exist (an empty book has no resting orders, so
// both return nil).
func (e *Engine) BestBidAsk(symbol model.Symbol) (bid, ask *money.Money) {
	return e.bookFor(symbol).BestBidAsk()
}

// BookStats returns the running Stats for symbol's book, if it exists.
func (e *Engine) BookStats(symbol model.Symbol) (Stats, bool) {
	e.mu.RLock()
	ob, ok := e.books[symbol.Canonical()]
	e.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return ob.Stats(), true
}
