// Package execution implements the smart-routing execution layer: it picks
// between the internal matching engine and registered external venues by a
// configured RoutingStrategy, and tracks per-venue running statistics.
// Grounded on execution_engine.rs's ExecutionEngine, translated from its
// dyn-trait-avoidance enum dispatch into a plain Venue interface (Go has no
// equivalent restriction, so a closed enum isn't needed here).
package execution

import (
	"time"

	"github.com/google/uuid"

	"tradecore/pkg/money"
)

// RoutingStrategy selects how the router chooses a venue for an order.
type RoutingStrategy string

const (
	BestPrice        RoutingStrategy = "BEST_PRICE"
	LowestFee        RoutingStrategy = "LOWEST_FEE"
	FastestExecution RoutingStrategy = "FASTEST_EXECUTION"
	SmartRouting     RoutingStrategy = "SMART_ROUTING"
	RoundRobin       RoutingStrategy = "ROUND_ROBIN"
)

// ExecutionStatus classifies a venue's response to an order submission.
type ExecutionStatus string

const (
	StatusPending         ExecutionStatus = "PENDING"
	StatusPartiallyFilled ExecutionStatus = "PARTIALLY_FILLED"
	StatusFilled          ExecutionStatus = "FILLED"
	StatusCancelled       ExecutionStatus = "CANCELLED"
	StatusRejected        ExecutionStatus = "REJECTED"
	StatusFailed          ExecutionStatus = "FAILED"
)

// TradeExecution is one fill reported by a venue.
type TradeExecution struct {
	TradeID   uuid.UUID
	Price     money.Money
	Quantity  money.Money
	Fee       money.Money
	Timestamp time.Time
}

// ExecutionResult is the router's outcome for one order, per spec.md §4.7.
type ExecutionResult struct {
	OrderID         uuid.UUID
	ExecutionID     uuid.UUID
	Status          ExecutionStatus
	FilledQuantity  money.Money
	AvgPrice        *money.Money
	TotalFee        money.Money
	ExecutionTimeMS int64
	Venue           string
	Trades          []TradeExecution
}

// VenueStats is one venue's running performance counters. AvgLatencyMS is
// an exponential moving average rather than a cumulative mean (supplemented
// feature grounded on execution_engine.rs's ewma_latency field), so it
// reflects current venue health more than all-time average.
type VenueStats struct {
	TotalOrders         uint64
	SuccessfulExecutions uint64
	FailedExecutions    uint64
	AvgLatencyMS        float64
	TotalVolume         money.Money
	TotalFees           money.Money
}

// ewmaAlpha weights the latest latency sample against the running average.
const ewmaAlpha = 0.2

func (s *VenueStats) recordLatency(ms int64) {
	sample := float64(ms)
	if s.TotalOrders == 0 {
		s.AvgLatencyMS = sample
		return
	}
	s.AvgLatencyMS = ewmaAlpha*sample + (1-ewmaAlpha)*s.AvgLatencyMS
}
