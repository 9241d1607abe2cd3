package model

import "errors"

// Error-kind taxonomy (spec.md §7). Each is a sentinel comparable with
// errors.Is; component code wraps one of these with fmt.Errorf("...: %w", …)
// at the boundary rather than inventing ad-hoc error types.
var (
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientMargin  = errors.New("insufficient margin")
	ErrRiskViolation       = errors.New("risk violation")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPositionNotFound    = errors.New("position not found")
	ErrMarketClosed        = errors.New("market closed")
	ErrExecutionFailed     = errors.New("execution error")
	ErrDatabase            = errors.New("database error")
	ErrSerialization       = errors.New("serialization error")
	ErrCircuitOpen         = errors.New("circuit open")
)
