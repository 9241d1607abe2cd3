package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/money"
)

// Position is a user's open exposure in one symbol on one side.
//
// Invariant: UnrealizedPnL = (MarkPrice - EntryPrice) * Size * sign(Side),
// sign(Long) = +1. Position is Closed iff Size == 0.
type Position struct {
	ID              uuid.UUID
	OwnerID         string
	Symbol          Symbol
	Side            PositionSide
	Size            money.Money
	EntryPrice      money.Money
	MarkPrice       money.Money
	LiquidationPrice *money.Money
	UnrealizedPnL   money.Money
	RealizedPnL     money.Money
	Margin          money.Money
	MarginRatio     money.Money
	Leverage        money.Money
	Status          PositionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPosition opens a position from an initial fill.
func NewPosition(ownerID string, symbol Symbol, side PositionSide, size, entryPrice, margin, leverage money.Money) (*Position, error) {
	if !size.IsPositive() {
		return nil, fmt.Errorf("new position: %w: size must be > 0", ErrInvalidOrder)
	}
	if !leverage.IsPositive() {
		return nil, fmt.Errorf("new position: %w: leverage must be > 0", ErrInvalidOrder)
	}
	now := time.Now().UTC()
	p := &Position{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Symbol:     symbol,
		Side:       side,
		Size:       size,
		EntryPrice: entryPrice,
		MarkPrice:  entryPrice,
		Margin:     margin,
		Leverage:   leverage,
		Status:     PositionOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.recomputeUnrealized()
	p.recomputeMarginRatio()
	return p, nil
}

// sign returns +1 for Long, -1 for Short, matching spec.md §3's
// "sign(Long) = +1" convention.
func (p *Position) sign() int64 {
	if p.Side == PositionLong {
		return 1
	}
	return -1
}

// UpdateMark recomputes MarkPrice, UnrealizedPnL and MarginRatio from a new
// mark price. Call on every tick affecting this symbol.
func (p *Position) UpdateMark(markPrice money.Money) {
	p.MarkPrice = markPrice
	p.recomputeUnrealized()
	p.recomputeMarginRatio()
	p.UpdatedAt = time.Now().UTC()
}

func (p *Position) recomputeUnrealized() {
	diff := p.MarkPrice.Sub(p.EntryPrice)
	pnl := diff.Mul(p.Size)
	if p.sign() < 0 {
		pnl = pnl.Neg()
	}
	p.UnrealizedPnL = pnl
}

func (p *Position) recomputeMarginRatio() {
	notional := p.MarkPrice.Mul(p.Size)
	if notional.IsZero() {
		p.MarginRatio = money.Zero
		return
	}
	p.MarginRatio = p.Margin.Add(p.UnrealizedPnL).Div(notional)
}

// AddToPosition increases size on the same side. EntryPrice becomes the
// size-weighted average of the old and added legs, per spec.md §3.
func (p *Position) AddToPosition(addSize, addPrice, addMargin money.Money) {
	oldSize := p.Size
	newSize := oldSize.Add(addSize)

	weightedOld := p.EntryPrice.Mul(oldSize)
	weightedAdd := addPrice.Mul(addSize)
	p.EntryPrice = weightedOld.Add(weightedAdd).Div(newSize)

	p.Size = newSize
	p.Margin = p.Margin.Add(addMargin)
	p.recomputeUnrealized()
	p.recomputeMarginRatio()
	p.UpdatedAt = time.Now().UTC()
}

// PartialClose reduces Size by closeSize at closePrice. RealizedPnL accrues
// by (closePrice - EntryPrice) * closeSize * sign(Side); a proportional
// slice of Margin (closeSize/sizeBefore) is released. Position becomes
// Closed once Size reaches zero; otherwise Status is left unchanged.
// Nothing here or in the trading engine sets Closing.
func (p *Position) PartialClose(closeSize, closePrice money.Money) (money.Money, error) {
	if !closeSize.IsPositive() || closeSize.GreaterThan(p.Size) {
		return money.Zero, fmt.Errorf("partial close: %w: close size out of range", ErrInvalidOrder)
	}

	sizeBefore := p.Size
	diff := closePrice.Sub(p.EntryPrice)
	realized := diff.Mul(closeSize)
	if p.sign() < 0 {
		realized = realized.Neg()
	}
	p.RealizedPnL = p.RealizedPnL.Add(realized)

	releasedMargin := p.Margin.Mul(closeSize).Div(sizeBefore)
	p.Margin = p.Margin.Sub(releasedMargin)
	p.Size = sizeBefore.Sub(closeSize)

	if p.Size.IsZero() {
		p.Status = PositionClosed
	}
	p.recomputeUnrealized()
	p.recomputeMarginRatio()
	p.UpdatedAt = time.Now().UTC()
	return realized, nil
}

// IsLiquidatable reports whether MarginRatio has fallen to or below the
// given liquidation threshold.
func (p *Position) IsLiquidatable(threshold money.Money) bool {
	return p.MarginRatio.LessThanOrEqual(threshold)
}
