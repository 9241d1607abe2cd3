package model

import (
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/money"
)

// Trade is an immutable execution record produced by the matching engine
// when an incoming (taker) order crosses a resting (maker) order.
type Trade struct {
	ID           uuid.UUID
	Symbol       Symbol
	MakerOrderID uuid.UUID
	TakerOrderID uuid.UUID
	Price        money.Money
	Quantity     money.Money
	TakerSide    Side // the side of the aggressing (taker) order
	MakerFee     money.Money
	TakerFee     money.Money
	ExecutedAt   time.Time
}

// NewTrade constructs a Trade stamped at the current time. Fees are computed
// by the caller (the matching engine's fee schedule) and passed in already
// priced in quote currency.
func NewTrade(symbol Symbol, makerOrderID, takerOrderID uuid.UUID, price, quantity money.Money, takerSide Side, makerFee, takerFee money.Money) *Trade {
	return &Trade{
		ID:           uuid.New(),
		Symbol:       symbol,
		MakerOrderID: makerOrderID,
		TakerOrderID: takerOrderID,
		Price:        price,
		Quantity:     quantity,
		TakerSide:    takerSide,
		MakerFee:     makerFee,
		TakerFee:     takerFee,
		ExecutedAt:   time.Now().UTC(),
	}
}

// Notional returns Price * Quantity.
func (t *Trade) Notional() money.Money {
	return t.Price.Mul(t.Quantity)
}

// MakerSide returns the side of the resting order that was filled, the
// opposite of TakerSide.
func (t *Trade) MakerSide() Side {
	return t.TakerSide.Opposite()
}
