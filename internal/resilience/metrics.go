package resilience

import "time"

// ConnectionState tracks one monitored connection. Owned exclusively
// by the recovery manager.
type ConnectionState string

const (
	ConnStateUnknown    ConnectionState = "unknown"
	ConnStateConnected  ConnectionState = "connected"
	ConnStateRecovering ConnectionState = "recovering"
	ConnStateFailed     ConnectionState = "failed"
	ConnStateStopped    ConnectionState = "stopped"
)

// OrchestratorState is the failover orchestrator's coarse mode.
type OrchestratorState string

const (
	StateNormal     OrchestratorState = "normal"
	StateRecovering OrchestratorState = "recovering"
)

// RecoveryMetrics is a point-in-time snapshot of the recovery
// manager's counters. Readers always get a copy, never live state.
type RecoveryMetrics struct {
	TotalAttempts        int64
	SuccessfulRecoveries int64
	FailedRecoveries     int64
	AverageRecoveryTime  time.Duration
	CurrentBackoffDelay  time.Duration
}

// FailoverMetrics is a snapshot of the orchestrator's counters.
type FailoverMetrics struct {
	FailoverCount int64
	RecoveryCount int64
	CurrentState  OrchestratorState
}

// SyncMetrics is a snapshot of the state synchronizer's counters.
type SyncMetrics struct {
	TotalSyncs        int64
	DiscrepancyCount  int64
	LastSyncAt        time.Time
	LastSyncDuration  time.Duration
	StrategiesTracked int
}

// ConsistencyMetrics is a snapshot of the consistency checker's
// counters.
type ConsistencyMetrics struct {
	TotalChecks          int64
	DetectedDiscrepancy  int64
	CorrectedDiscrepancy int64
	LastCheckAt          time.Time
}

// RecoveryStatus reports one connection's state plus episode details
// when a recovery is in flight.
type RecoveryStatus struct {
	InstanceID     string
	State          ConnectionState
	Attempts       int
	MaxAttempts    int
	CurrentBackoff time.Duration
	StartedAt      time.Time
	LastError      string
}
