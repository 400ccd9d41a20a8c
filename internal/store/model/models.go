package model

import "gorm.io/datatypes"

// AuditEventModel persists one resilience event for post-incident
// review. Timestamps are unix milliseconds.
type AuditEventModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	EventType  string         `gorm:"column:event_type;index"`
	InstanceID string         `gorm:"column:instance_id;index"`
	StrategyID string         `gorm:"column:strategy_id"`
	SignalID   string         `gorm:"column:signal_id"`
	Attempt    int            `gorm:"column:attempt"`
	ElapsedMs  int64          `gorm:"column:elapsed_ms"`
	Error      string         `gorm:"column:error"`
	Detail     datatypes.JSON `gorm:"column:detail;type:TEXT"`
	OccurredAt int64          `gorm:"column:occurred_at;index"`
	CreatedAt  int64          `gorm:"column:created_at;autoCreateTime:milli"`
}

func (AuditEventModel) TableName() string { return "audit_events" }

// DiscrepancyModel persists one detected divergence and whether it was
// auto-corrected.
type DiscrepancyModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	Type        string  `gorm:"column:type;index"`
	StrategyID  string  `gorm:"column:strategy_id;index"`
	Field       string  `gorm:"column:field"`
	BridgeValue string  `gorm:"column:bridge_value"`
	LocalValue  string  `gorm:"column:local_value"`
	Magnitude   float64 `gorm:"column:magnitude"`
	Corrected   bool    `gorm:"column:corrected"`
	DetectedAt  int64   `gorm:"column:detected_at;index"`
	CreatedAt   int64   `gorm:"column:created_at;autoCreateTime:milli"`
}

func (DiscrepancyModel) TableName() string { return "discrepancies" }

// ExecutionModel persists one execution outcome, including failed
// ones, keyed by the originating signal.
type ExecutionModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	SignalID   string  `gorm:"column:signal_id;index"`
	StrategyID string  `gorm:"column:strategy_id;index"`
	Symbol     string  `gorm:"column:symbol"`
	Direction  string  `gorm:"column:direction"`
	Method     string  `gorm:"column:method"`
	Success    bool    `gorm:"column:success"`
	OrderID    string  `gorm:"column:order_id;index"`
	FilledQty  float64 `gorm:"column:filled_qty"`
	AvgPrice   float64 `gorm:"column:avg_price"`
	Error      string  `gorm:"column:error"`
	ExecutedAt int64   `gorm:"column:executed_at;index"`
	CreatedAt  int64   `gorm:"column:created_at;autoCreateTime:milli"`
}

func (ExecutionModel) TableName() string { return "executions" }
