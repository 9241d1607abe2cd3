// Package matching implements the per-symbol order book and price-time
// priority matching engine described in spec.md §4.6: two price-indexed
// books (bids descending, asks ascending), each a FIFO queue of resting
// orders at that price, an in-memory order store, and fill bookkeeping.
package matching

import (
	"tradecore/pkg/money"
)

// FeeSchedule is the notional-based fee rate pair applied to every fill.
// Defaults match spec.md §4.6: maker 0.01%, taker 0.02%.
type FeeSchedule struct {
	MakerRate money.Money
	TakerRate money.Money
}

// DefaultFeeSchedule returns the spec.md §4.6 default rates.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		MakerRate: money.MustParse("0.0001"),
		TakerRate: money.MustParse("0.0002"),
	}
}

func (f FeeSchedule) makerFee(notional money.Money) money.Money {
	return notional.Mul(f.MakerRate)
}

func (f FeeSchedule) takerFee(notional money.Money) money.Money {
	return notional.Mul(f.TakerRate)
}

// Stats tracks running trade statistics for one symbol's book, updated on
// every fill per spec.md §4.6.
type Stats struct {
	TotalVolume  money.Money
	TotalTrades  uint64
	AvgTradeSize money.Money
	PriceHigh24h *money.Money
	PriceLow24h  *money.Money
	Volume24h    money.Money
}

func newStats() Stats {
	return Stats{TotalVolume: money.Zero, AvgTradeSize: money.Zero, Volume24h: money.Zero}
}

func (s *Stats) recordTrade(price, quantity money.Money) {
	s.TotalTrades++
	s.TotalVolume = s.TotalVolume.Add(quantity)
	s.Volume24h = s.Volume24h.Add(quantity)

	if s.PriceHigh24h == nil || price.GreaterThan(*s.PriceHigh24h) {
		p := price
		s.PriceHigh24h = &p
	}
	if s.PriceLow24h == nil || price.LessThan(*s.PriceLow24h) {
		p := price
		s.PriceLow24h = &p
	}

	s.AvgTradeSize = s.TotalVolume.Div(money.NewFromInt(int64(s.TotalTrades)))
}
