package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/money"
)

// Order is the exchange-internal representation of a client order. Every
// state transition updates UpdatedAt; FilledQuantity is monotonic and never
// exceeds Quantity.
type Order struct {
	ID            uuid.UUID
	ClientOrderID string // optional, client-assigned
	OwnerID       string
	Symbol        Symbol
	Type          OrderType
	Side          Side
	Quantity      money.Money
	Price         *money.Money // nil unless Type.RequiresPrice()
	StopPrice     *money.Money // nil unless Type.RequiresStopPrice()
	Status        OrderStatus
	TIF           TimeInForce
	ExpiresAt     *time.Time // required iff TIF == TIFGTD

	FilledQuantity money.Money
	AvgFillPrice   money.Money // size-weighted average of all fills so far
	CumulativeFee  money.Money

	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder constructs a Pending order and validates the static contract
// named in spec.md §3 (requires_price ⇒ price present, etc). Quantity must
// be strictly positive; Price and StopPrice, when present, must be
// strictly positive too.
func NewOrder(ownerID string, symbol Symbol, typ OrderType, side Side, qty money.Money, price, stopPrice *money.Money, tif TimeInForce, expiresAt *time.Time, clientOrderID string) (*Order, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("new order: %w: quantity must be > 0", ErrInvalidOrder)
	}
	if typ.RequiresPrice() {
		if price == nil || !price.IsPositive() {
			return nil, fmt.Errorf("new order: %w: %s requires a positive price", ErrInvalidOrder, typ)
		}
	}
	if typ.RequiresStopPrice() {
		if stopPrice == nil || !stopPrice.IsPositive() {
			return nil, fmt.Errorf("new order: %w: %s requires a positive stop price", ErrInvalidOrder, typ)
		}
	}
	if tif == TIFGTD && expiresAt == nil {
		return nil, fmt.Errorf("new order: %w: GTD requires expires_at", ErrInvalidOrder)
	}

	now := time.Now().UTC()
	return &Order{
		ID:             uuid.New(),
		ClientOrderID:  clientOrderID,
		OwnerID:        ownerID,
		Symbol:         symbol,
		Type:           typ,
		Side:           side,
		Quantity:       qty,
		Price:          price,
		StopPrice:      stopPrice,
		Status:         OrderStatusPending,
		TIF:            tif,
		ExpiresAt:      expiresAt,
		FilledQuantity: money.Zero,
		AvgFillPrice:   money.Zero,
		CumulativeFee:  money.Zero,
		Metadata:       make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// RemainingQuantity returns Quantity - FilledQuantity.
func (o *Order) RemainingQuantity() money.Money {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsActive reports whether the order may still be matched, cancelled or
// modified.
func (o *Order) IsActive() bool { return o.Status.IsActive() }

// CanModify reports whether the order is eligible for in-place modification
// (spec.md §3: "only Pending may be modified").
func (o *Order) CanModify() bool { return o.Status == OrderStatusPending }

// ApplyFill records one execution against this order: updates
// FilledQuantity, recomputes the size-weighted AvgFillPrice, accrues fee,
// and derives the new status (Filled once RemainingQuantity reaches zero,
// PartiallyFilled otherwise). touch() stamps UpdatedAt.
func (o *Order) ApplyFill(fillQty, fillPrice, fee money.Money) {
	priorFilled := o.FilledQuantity
	newFilled := priorFilled.Add(fillQty)

	if priorFilled.IsZero() {
		o.AvgFillPrice = fillPrice
	} else {
		weightedOld := o.AvgFillPrice.Mul(priorFilled)
		weightedNew := fillPrice.Mul(fillQty)
		o.AvgFillPrice = weightedOld.Add(weightedNew).Div(newFilled)
	}

	o.FilledQuantity = newFilled
	o.CumulativeFee = o.CumulativeFee.Add(fee)

	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = OrderStatusFilled
	} else if o.FilledQuantity.IsPositive() {
		o.Status = OrderStatusPartiallyFilled
	}
	o.touch()
}

// Cancel transitions an active order to Cancelled. Only active orders may
// be cancelled (spec.md §3).
func (o *Order) Cancel() error {
	if !o.IsActive() {
		return fmt.Errorf("cancel order %s: %w: status is %s", o.ID, ErrInvalidOrder, o.Status)
	}
	o.Status = OrderStatusCancelled
	o.touch()
	return nil
}

// Reject transitions the order to Rejected with no fills.
func (o *Order) Reject() {
	o.Status = OrderStatusRejected
	o.touch()
}

// Expire transitions an active order to Expired.
func (o *Order) Expire() {
	if !o.IsActive() {
		return
	}
	o.Status = OrderStatusExpired
	o.touch()
}

func (o *Order) touch() { o.UpdatedAt = time.Now().UTC() }
