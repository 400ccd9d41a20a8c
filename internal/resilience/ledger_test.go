package resilience

import (
	"testing"
	"time"

	"bastion/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAccumulatesExecutions(t *testing.T) {
	ledger := NewShadowLedger()

	long := types.NewSignal("s1", "BTCUSDT", types.DirectionLong, 50000)
	ledger.RecordExecution(long, types.ExecutionResult{
		Success: true, Method: types.MethodBridge, OrderID: "t-1",
		FilledQty: 1.0, AvgPrice: 50000, Timestamp: time.Now(),
	})
	short := types.NewSignal("s1", "BTCUSDT", types.DirectionShort, 51000)
	ledger.RecordExecution(short, types.ExecutionResult{
		Success: true, Method: types.MethodDirect, OrderID: "t-2",
		FilledQty: 0.4, AvgPrice: 51000, Timestamp: time.Now(),
	})

	snap := ledger.Snapshot("s1")
	assert.Equal(t, int64(2), snap.TotalTrades)
	assert.InDelta(t, 50000*1.0+51000*0.4, snap.TotalVolume, 1e-6)

	require.True(t, ledger.HasTrade("t-1"))
	require.True(t, ledger.HasTrade("t-2"))
	assert.Len(t, ledger.Trades(), 2)

	// Net position: +1.0 long then 0.4 short.
	assert.InDelta(t, 0.6, ledger.Positions()["BTCUSDT"].Amount, 1e-9)
}

func TestLedgerIgnoresFailedResults(t *testing.T) {
	ledger := NewShadowLedger()
	signal := types.NewSignal("s1", "BTCUSDT", types.DirectionLong, 50000)

	ledger.RecordExecution(signal, types.Failed(types.MethodBridge, assert.AnError))
	ledger.RecordExecution(signal, types.ExecutionResult{Success: true})

	assert.Equal(t, int64(0), ledger.Snapshot("s1").TotalTrades)
	assert.Empty(t, ledger.Trades())
}

func TestLedgerPnLArithmeticIsExact(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	// Accumulating 0.1 ten times would drift under float addition.
	for i := 0; i < 10; i++ {
		ledger.RecordPnL("s1", 0.1, now)
	}
	assert.Equal(t, 1.0, ledger.Snapshot("s1").TotalPnL)
}

func TestLedgerSnapshotReturnsCopies(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.SetParameters("s1", map[string]float64{"stoploss": -0.1})

	snap := ledger.Snapshot("s1")
	snap.Parameters["stoploss"] = 99

	assert.InDelta(t, -0.1, ledger.Snapshot("s1").Parameters["stoploss"], 1e-9)
	assert.Zero(t, ledger.Snapshot("unknown").TotalTrades)
}

func TestLedgerKeepsNewestTimestampOnOutOfOrderResults(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	signal := types.NewSignal("s1", "BTCUSDT", types.DirectionLong, 50000)

	ledger.RecordExecution(signal, types.ExecutionResult{
		Success: true, Method: types.MethodBridge, OrderID: "t-1",
		FilledQty: 1.0, AvgPrice: 50000, Timestamp: now,
	})
	// A retried fill can report an earlier timestamp; the strategy
	// clock must not move backwards or sync would flag phantom skew.
	ledger.RecordExecution(signal, types.ExecutionResult{
		Success: true, Method: types.MethodDirect, OrderID: "t-2",
		FilledQty: 0.5, AvgPrice: 50100, Timestamp: now.Add(-time.Minute),
	})

	snap := ledger.Snapshot("s1")
	assert.Equal(t, int64(2), snap.TotalTrades)
	assert.True(t, snap.UpdatedAt.Equal(now))
}

func TestLedgerCorrections(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.RecordPnL("s1", 100, time.Now())

	ledger.CorrectPnL("s1", 42.5)
	ledger.CorrectTradeCount("s1", 7)
	ledger.CorrectPosition("btcusdt", -1.5)

	snap := ledger.Snapshot("s1")
	assert.InDelta(t, 42.5, snap.TotalPnL, 1e-9)
	assert.Equal(t, int64(7), snap.TotalTrades)
	assert.InDelta(t, -1.5, ledger.Positions()["BTCUSDT"].Amount, 1e-9)
}
