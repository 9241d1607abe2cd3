package matching

import (
	"sort"

	"github.com/google/uuid"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// priceLevel is one price's FIFO queue of resting orders, price-time
// priority within the level maintained by always appending to the tail and
// draining from the head.
type priceLevel struct {
	price  money.Money
	orders []*model.Order // head = orders[0]
}

func (l *priceLevel) totalRemaining() money.Money {
	total := money.Zero
	for _, o := range l.orders {
		total = total.Add(o.RemainingQuantity())
	}
	return total
}

// remove deletes the order with the given id from the level in O(n). It
// reports whether a removal occurred.
func (l *priceLevel) remove(id uuid.UUID) bool {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true
		}
	}
	return false
}

// book is the sorted collection of price levels on one side. bids are kept
// descending (best bid at index 0); asks ascending (best ask at index 0).
type book struct {
	levels     []*priceLevel
	descending bool
}

func newBook(descending bool) *book {
	return &book{descending: descending}
}

func (b *book) best() (*priceLevel, bool) {
	if len(b.levels) == 0 {
		return nil, false
	}
	return b.levels[0], true
}

// crossesLimit reports whether a resting price at levelPrice still
// satisfies an incoming limit order's price constraint: asks must be ≤ the
// buy limit price, bids must be ≥ the sell limit price.
func (b *book) crossesLimit(levelPrice, limitPrice money.Money) bool {
	if b.descending { // this book is bids; incoming is a sell limit
		return levelPrice.GreaterThanOrEqual(limitPrice)
	}
	return levelPrice.LessThanOrEqual(limitPrice) // this book is asks; incoming is a buy limit
}

// levelFor finds (or creates, inserted in sorted order) the level at price.
func (b *book) levelFor(price money.Money) *priceLevel {
	idx := sort.Search(len(b.levels), func(i int) bool {
		if b.descending {
			return !b.levels[i].price.GreaterThan(price) // first i with price[i] <= price
		}
		return !b.levels[i].price.LessThan(price) // first i with price[i] >= price
	})
	if idx < len(b.levels) && b.levels[idx].price.Equal(price) {
		return b.levels[idx]
	}
	lvl := &priceLevel{price: price}
	b.levels = append(b.levels, nil)
	copy(b.levels[idx+1:], b.levels[idx:])
	b.levels[idx] = lvl
	return lvl
}

// removeOrder locates price's level and removes id from it, pruning the
// level if it becomes empty. Reports whether a removal occurred.
func (b *book) removeOrder(price money.Money, id uuid.UUID) bool {
	for i, lvl := range b.levels {
		if !lvl.price.Equal(price) {
			continue
		}
		removed := lvl.remove(id)
		if len(lvl.orders) == 0 {
			b.levels = append(b.levels[:i], b.levels[i+1:]...)
		}
		return removed
	}
	return false
}

// sweepExpired removes every order for which isExpired reports true across
// all levels, returning their ids and pruning levels left empty.
func (b *book) sweepExpired(isExpired func(*model.Order) bool) []uuid.UUID {
	var expired []uuid.UUID
	kept := b.levels[:0]
	for _, lvl := range b.levels {
		remaining := lvl.orders[:0]
		for _, o := range lvl.orders {
			if isExpired(o) {
				expired = append(expired, o.ID)
			} else {
				remaining = append(remaining, o)
			}
		}
		lvl.orders = remaining
		if len(lvl.orders) > 0 {
			kept = append(kept, lvl)
		}
	}
	b.levels = kept
	return expired
}
