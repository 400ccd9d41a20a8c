package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction is the side a signal wants to take.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ExecutionMethod records which path actually carried an order.
type ExecutionMethod string

const (
	MethodBridge ExecutionMethod = "bridge"
	MethodDirect ExecutionMethod = "direct"
)

// TradingSignal is an immutable execution request produced by the
// (external) signal generator. Each signal is consumed at most once
// per execution attempt by the failover orchestrator.
type TradingSignal struct {
	ID         string
	StrategyID string
	Symbol     string
	Venue      string
	Direction  Direction
	Price      float64
	Confidence float64
	Source     string
	CreatedAt  time.Time
}

// NewSignal builds a signal with a fresh id and timestamp.
func NewSignal(strategyID, symbol string, dir Direction, price float64) TradingSignal {
	return TradingSignal{
		ID:         uuid.NewString(),
		StrategyID: strings.TrimSpace(strategyID),
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Direction:  dir,
		Price:      price,
		CreatedAt:  time.Now(),
	}
}

// ExecutionResult is produced by either executor and never mutated
// after creation. Success implies OrderID is set.
type ExecutionResult struct {
	Success   bool
	Method    ExecutionMethod
	OrderID   string
	FilledQty float64
	AvgPrice  float64
	Timestamp time.Time
	Err       error
}

// Failed builds the failed-result shape used when a path rejects a
// signal. Callers inspect the result rather than catch an error.
func Failed(method ExecutionMethod, err error) ExecutionResult {
	return ExecutionResult{
		Success:   false,
		Method:    method,
		Timestamp: time.Now(),
		Err:       err,
	}
}
