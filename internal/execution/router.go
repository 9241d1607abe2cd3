package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/circuitbreaker"
	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

// Config tunes the Router.
type Config struct {
	ExecutionTimeout time.Duration
	BreakerConfig    circuitbreaker.Config
}

// DefaultConfig matches spec.md §4.7's execution_timeout discussion.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: 5 * time.Second,
		BreakerConfig:    circuitbreaker.DefaultConfig(),
	}
}

// Router is the smart-routing execution layer: it picks a Venue per
// RoutingStrategy and records per-venue running statistics, per spec.md
// §4.7. The internal venue is always registered and is the fallback when
// no external venue is available or qualifies.
type Router struct {
	cfg      Config
	internal Venue
	logger   *slog.Logger

	mu       sync.Mutex
	venues   map[string]Venue
	breakers map[string]*circuitbreaker.Breaker
	stats    map[string]*VenueStats
	rrNext   int
	rrOrder  []string
}

// NewRouter builds a Router with internal as the always-available fallback
// venue.
func NewRouter(cfg Config, internal Venue, logger *slog.Logger) *Router {
	r := &Router{
		cfg:      cfg,
		internal: internal,
		logger:   logger.With("component", "execution-router"),
		venues:   make(map[string]Venue),
		breakers: make(map[string]*circuitbreaker.Breaker),
		stats:    make(map[string]*VenueStats),
	}
	r.register(internal)
	return r
}

// RegisterVenue adds an external venue the router may select.
func (r *Router) RegisterVenue(v Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(v)
}

func (r *Router) register(v Venue) {
	name := v.Name()
	r.venues[name] = v
	r.breakers[name] = circuitbreaker.New(r.cfg.BreakerConfig)
	r.stats[name] = &VenueStats{TotalVolume: money.Zero, TotalFees: money.Zero}
	r.rrOrder = append(r.rrOrder, name)
}

// VenueStats returns a snapshot of name's running statistics.
func (r *Router) VenueStats(name string) (VenueStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		return VenueStats{}, false
	}
	return *s, true
}

// VenueNames returns the names of every venue currently registered.
func (r *Router) VenueNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.rrOrder))
	copy(names, r.rrOrder)
	return names
}

// ExecuteOrder routes order per strategy, executes it, and records the
// outcome into the chosen venue's running statistics.
func (r *Router) ExecuteOrder(ctx context.Context, order *model.Order, strategy RoutingStrategy) (*ExecutionResult, error) {
	venue := r.selectVenue(ctx, order, strategy)

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.ExecutionTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.submitWithBreaker(execCtx, venue, order)
	elapsedMS := time.Since(start).Milliseconds()

	r.recordOutcome(venue.Name(), result, err, elapsedMS)

	if err != nil {
		return nil, err
	}
	result.ExecutionID = uuid.New()
	result.ExecutionTimeMS = elapsedMS
	return result, nil
}

func (r *Router) submitWithBreaker(ctx context.Context, venue Venue, order *model.Order) (*ExecutionResult, error) {
	breaker := r.breakerFor(venue.Name())
	if !breaker.Allow(time.Now()) {
		return nil, fmt.Errorf("execution: venue %s: %w", venue.Name(), model.ErrCircuitOpen)
	}

	type outcome struct {
		result *ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := venue.Submit(ctx, order)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			breaker.RecordFailure(time.Now())
			return nil, fmt.Errorf("execution: venue %s submit failed: %w", venue.Name(), o.err)
		}
		breaker.RecordSuccess()
		return o.result, nil
	case <-ctx.Done():
		breaker.RecordFailure(time.Now())
		return nil, fmt.Errorf("execution: venue %s: %w: %s", venue.Name(), model.ErrExecutionFailed, ctx.Err())
	}
}

func (r *Router) breakerFor(name string) *circuitbreaker.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

func (r *Router) recordOutcome(venueName string, result *ExecutionResult, err error, elapsedMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[venueName]
	if !ok {
		return
	}
	s.recordLatency(elapsedMS)
	s.TotalOrders++

	if err != nil {
		s.FailedExecutions++
		return
	}
	switch result.Status {
	case StatusFilled, StatusPartiallyFilled:
		s.SuccessfulExecutions++
		s.TotalVolume = s.TotalVolume.Add(result.FilledQuantity)
		s.TotalFees = s.TotalFees.Add(result.TotalFee)
	default:
		s.FailedExecutions++
	}
}

// selectVenue applies strategy, falling back to the internal venue whenever
// no external venue has a usable quote/fee/availability.
func (r *Router) selectVenue(ctx context.Context, order *model.Order, strategy RoutingStrategy) Venue {
	switch strategy {
	case FastestExecution:
		// The internal matching engine has no network hop, so it is always
		// the lowest-latency choice (execution_engine.rs's
		// execute_lowest_latency never even queries external venues).
		return r.internal
	case LowestFee:
		if v := r.lowestFeeVenue(order); v != nil {
			return v
		}
	case RoundRobin:
		if v := r.nextRoundRobin(); v != nil {
			return v
		}
	case BestPrice, SmartRouting:
		if v := r.bestPriceVenue(ctx, order); v != nil {
			return v
		}
	}
	return r.internal
}

func (r *Router) externalVenues() []Venue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Venue, 0, len(r.venues))
	for name, v := range r.venues {
		if name == r.internal.Name() {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (r *Router) bestPriceVenue(ctx context.Context, order *model.Order) Venue {
	var best Venue
	var bestPrice *money.Money

	for _, v := range r.externalVenues() {
		bid, ask, err := v.Quote(ctx, order.Symbol)
		if err != nil {
			continue
		}
		price := ask
		if order.Side == model.Sell {
			price = bid
		}
		if price == nil {
			continue
		}
		if bestPrice == nil ||
			(order.Side == model.Buy && price.LessThan(*bestPrice)) ||
			(order.Side == model.Sell && price.GreaterThan(*bestPrice)) {
			bestPrice = price
			best = v
		}
	}
	return best
}

func (r *Router) lowestFeeVenue(order *model.Order) Venue {
	var best Venue
	var lowest *money.Money

	for _, v := range r.externalVenues() {
		maker, taker := v.Fees()
		fee := taker
		if order.Type == model.OrderTypeLimit {
			fee = maker
		}
		if lowest == nil || fee.LessThan(*lowest) {
			f := fee
			lowest = &f
			best = v
		}
	}
	return best
}

func (r *Router) nextRoundRobin() Venue {
	r.mu.Lock()
	defer r.mu.Unlock()

	external := make([]string, 0, len(r.rrOrder))
	for _, name := range r.rrOrder {
		if name != r.internal.Name() {
			external = append(external, name)
		}
	}
	if len(external) == 0 {
		return nil
	}
	name := external[r.rrNext%len(external)]
	r.rrNext++
	return r.venues[name]
}
