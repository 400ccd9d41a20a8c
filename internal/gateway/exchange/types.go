package exchange

import "time"

// ConnectionStatus mirrors the bridge's view of one logical connection.
type ConnectionStatus string

const (
	ConnStatusConnected    ConnectionStatus = "connected"
	ConnStatusDisconnected ConnectionStatus = "disconnected"
	ConnStatusDegraded     ConnectionStatus = "degraded"
)

// ConnectionDescriptor describes one bridge connection instance.
type ConnectionDescriptor struct {
	InstanceID    string
	Status        ConnectionStatus
	LastHeartbeat time.Time
	APIVersion    string
	Endpoint      string
}

// StrategyExecutionRecord is the bridge-reported view of one active
// strategy. Refreshed every sync cycle and diffed against the local
// shadow ledger.
type StrategyExecutionRecord struct {
	StrategyID  string
	TotalTrades int64
	TotalVolume float64
	TotalPnL    float64
	FillRate    float64
	MaxDrawdown float64
	Parameters  map[string]float64
	UpdatedAt   time.Time
}

// TradeRecord is one executed trade as reported by a path. Used by the
// consistency checker to detect duplicates and orphans.
type TradeRecord struct {
	TradeID    string
	OrderID    string
	StrategyID string
	Symbol     string
	Side       string
	Amount     float64
	Price      float64
	ExecutedAt time.Time
}

// PositionRecord is a per-symbol net position view. Sign of Amount
// encodes direction (long > 0, short < 0).
type PositionRecord struct {
	Symbol    string
	Amount    float64
	AvgEntry  float64
	UpdatedAt time.Time
}
