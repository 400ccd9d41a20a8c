package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"bastion/internal/resilience"
	"bastion/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTripsEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordEvent(ctx, resilience.Event{
		Type:       resilience.EventRecoveryFailed,
		InstanceID: "ft-1",
		Attempt:    3,
		Elapsed:    1500 * time.Millisecond,
		Err:        fmt.Errorf("connection refused"),
		Detail:     "status=disconnected",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)

	rows, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "recovery-failed", rows[0].EventType)
	assert.Equal(t, "ft-1", rows[0].InstanceID)
	assert.Equal(t, 3, rows[0].Attempt)
	assert.Equal(t, int64(1500), rows[0].ElapsedMs)
	assert.Equal(t, "connection refused", rows[0].Error)
	assert.Contains(t, string(rows[0].Detail), "status=disconnected")
}

func TestStorePersistsDiscrepancies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordDiscrepancies(ctx, []resilience.Discrepancy{
		{Type: resilience.DiscrepancyPnL, StrategyID: "s1", BridgeValue: "101", LocalValue: "100", Magnitude: 1, Corrected: true, DetectedAt: time.Now()},
		{Type: resilience.DiscrepancyOrphanOrder, StrategyID: "s1", BridgeValue: "t-9", DetectedAt: time.Now()},
	})
	require.NoError(t, err)

	rows, err := s.RecentDiscrepancies(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := s.UncorrectedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.NoError(t, s.RecordDiscrepancies(ctx, nil))
}

func TestStoreAttachPersistsBusEvents(t *testing.T) {
	s := newTestStore(t)
	bus := resilience.NewBus()
	s.Attach(bus)

	bus.Publish(resilience.Event{Type: resilience.EventFailover, InstanceID: "ft-1", SignalID: "sig-1"})

	rows, err := s.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "failover", rows[0].EventType)
	assert.Equal(t, "sig-1", rows[0].SignalID)
}

func TestStoreRecordsExecutions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	signal := types.NewSignal("s1", "BTCUSDT", types.DirectionLong, 50000)

	require.NoError(t, s.RecordExecution(ctx, signal, types.ExecutionResult{
		Success: true, Method: types.MethodBridge, OrderID: "ord-1",
		FilledQty: 0.5, AvgPrice: 50000, Timestamp: time.Now(),
	}))
	require.NoError(t, s.RecordExecution(ctx, signal, types.Failed(types.MethodDirect, fmt.Errorf("rejected"))))
}

func TestNewStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
	_, err = NewStoreFromDB(nil)
	assert.Error(t, err)
}
