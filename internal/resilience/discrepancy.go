package resilience

import "time"

// DiscrepancyType classifies a detected divergence between the
// bridge's and the local ledger's view of trading state.
type DiscrepancyType string

const (
	DiscrepancyPnL          DiscrepancyType = "pnl-mismatch"
	DiscrepancyTradeCount   DiscrepancyType = "trade-count-mismatch"
	DiscrepancyParameter    DiscrepancyType = "parameter-drift"
	DiscrepancyTimestamp    DiscrepancyType = "timestamp-skew"
	DiscrepancyDuplicate    DiscrepancyType = "duplicate-trade"
	DiscrepancyPositionSign DiscrepancyType = "position-sign-mismatch"
	DiscrepancyOrphanOrder  DiscrepancyType = "orphaned-order"
)

// Discrepancy carries one detected mismatch and whether an automatic
// correction was applied for it.
type Discrepancy struct {
	Type        DiscrepancyType
	StrategyID  string
	Field       string
	BridgeValue string
	LocalValue  string
	Magnitude   float64
	DetectedAt  time.Time
	Corrected   bool
}
