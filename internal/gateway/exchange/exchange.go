package exchange

import (
	"context"

	"bastion/internal/types"
)

// Executor places orders for trading signals. Implementations must
// fail fast (bounded time) rather than hang; the caller supplies the
// deadline through ctx.
type Executor interface {
	Name() string

	Execute(ctx context.Context, signal types.TradingSignal) (*types.ExecutionResult, error)
}

// BridgeExecutor is the external, semi-autonomous execution engine.
// Beyond order placement it reports its connections and the
// authoritative per-strategy execution state used for reconciliation.
type BridgeExecutor interface {
	Executor

	GetConnections(ctx context.Context) (map[string]ConnectionDescriptor, error)

	GetStrategyState(ctx context.Context, strategyID string) (*StrategyExecutionRecord, error)
}

// ConnectionFactory attempts to (re)establish one logical bridge
// connection. It must be safe to call repeatedly.
type ConnectionFactory func(ctx context.Context) (*ConnectionDescriptor, error)
