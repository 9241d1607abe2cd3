package matching

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradecore/pkg/model"
)

// OrderStore is an in-memory order record keyed by id, sharded by symbol
// with a per-shard mutex — the in-process analogue of the original
// implementation's per-row Postgres lock (storage/order_store.rs), since
// persistence itself is out of scope here.
type OrderStore struct {
	mu     sync.RWMutex
	shards map[string]*orderShard // keyed by Symbol.Canonical()
}

type orderShard struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
}

// NewOrderStore builds an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{shards: make(map[string]*orderShard)}
}

func (s *OrderStore) shardFor(symbol model.Symbol) *orderShard {
	canonical := symbol.Canonical()

	s.mu.RLock()
	shard, ok := s.shards[canonical]
	s.mu.RUnlock()
	if ok {
		return shard
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if shard, ok := s.shards[canonical]; ok {
		return shard
	}
	shard = &orderShard{orders: make(map[uuid.UUID]*model.Order)}
	s.shards[canonical] = shard
	return shard
}

// Create inserts order, keyed by its own ID and symbol shard.
func (s *OrderStore) Create(order *model.Order) {
	shard := s.shardFor(order.Symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.orders[order.ID] = order
}

// Get returns the order for (symbol, id), if present.
func (s *OrderStore) Get(symbol model.Symbol, id uuid.UUID) (*model.Order, bool) {
	shard := s.shardFor(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	o, ok := shard.orders[id]
	return o, ok
}

// Delete removes the order for (symbol, id). Returns an error if absent.
func (s *OrderStore) Delete(symbol model.Symbol, id uuid.UUID) error {
	shard := s.shardFor(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.orders[id]; !ok {
		return fmt.Errorf("matching: delete order %s: %w", id, model.ErrOrderNotFound)
	}
	delete(shard.orders, id)
	return nil
}

// ActiveForOwner returns every active order owned by ownerID across all
// symbol shards.
func (s *OrderStore) ActiveForOwner(ownerID string) []*model.Order {
	s.mu.RLock()
	shards := make([]*orderShard, 0, len(s.shards))
	for _, shard := range s.shards {
		shards = append(shards, shard)
	}
	s.mu.RUnlock()

	var out []*model.Order
	for _, shard := range shards {
		shard.mu.Lock()
		for _, o := range shard.orders {
			if o.OwnerID == ownerID && o.IsActive() {
				out = append(out, o)
			}
		}
		shard.mu.Unlock()
	}
	return out
}
