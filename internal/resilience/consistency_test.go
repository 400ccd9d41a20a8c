package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTradeSource struct {
	trades []exchange.TradeRecord
	err    error
}

func (s *stubTradeSource) ListTrades(ctx context.Context) ([]exchange.TradeRecord, error) {
	return s.trades, s.err
}

func testConsistencyConfig(autoCorrect bool) bcfg.ConsistencyConfig {
	return bcfg.ConsistencyConfig{IntervalMs: 300000, AutoCorrect: autoCorrect}
}

func recordLongTrade(ledger *ShadowLedger, orderID, strategyID, symbol string, qty float64) {
	signal := types.NewSignal(strategyID, symbol, types.DirectionLong, 50000)
	ledger.RecordExecution(signal, types.ExecutionResult{
		Success:   true,
		Method:    types.MethodBridge,
		OrderID:   orderID,
		FilledQty: qty,
		AvgPrice:  50000,
		Timestamp: time.Now(),
	})
}

func TestCheckerCorrectsQueuedPnLMismatch(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.RecordPnL("s1", 100.0, time.Now())

	c, err := NewChecker(testConsistencyConfig(true), &stubTradeSource{}, ledger, nil)
	require.NoError(t, err)

	c.Accept([]Discrepancy{{
		Type:        DiscrepancyPnL,
		StrategyID:  "s1",
		BridgeValue: "105.5",
		LocalValue:  "100",
	}})

	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.True(t, processed[0].Corrected)
	assert.InDelta(t, 105.5, ledger.Snapshot("s1").TotalPnL, 1e-9)

	metrics := c.Metrics()
	assert.Equal(t, int64(1), metrics.TotalChecks)
	assert.Equal(t, int64(1), metrics.DetectedDiscrepancy)
	assert.Equal(t, int64(1), metrics.CorrectedDiscrepancy)
}

func TestCheckerCorrectsQueuedTradeCountMismatch(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.CorrectTradeCount("s1", 10)

	c, err := NewChecker(testConsistencyConfig(true), &stubTradeSource{}, ledger, nil)
	require.NoError(t, err)

	c.Accept([]Discrepancy{{
		Type:        DiscrepancyTradeCount,
		StrategyID:  "s1",
		BridgeValue: "12",
		LocalValue:  "10",
	}})

	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.True(t, processed[0].Corrected)
	assert.Equal(t, int64(12), ledger.Snapshot("s1").TotalTrades)
}

func TestCheckerLeavesParameterDriftUncorrected(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.SetParameters("s1", map[string]float64{"stoploss": -0.10})

	c, err := NewChecker(testConsistencyConfig(true), &stubTradeSource{}, ledger, nil)
	require.NoError(t, err)

	c.Accept([]Discrepancy{{
		Type:        DiscrepancyParameter,
		StrategyID:  "s1",
		Field:       "parameters.stoploss",
		BridgeValue: "-0.12",
		LocalValue:  "-0.1",
	}})

	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.False(t, processed[0].Corrected)
	assert.InDelta(t, -0.10, ledger.Snapshot("s1").Parameters["stoploss"], 1e-9)
}

func TestCheckerAutoCorrectDisabledOnlyFlags(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.RecordPnL("s1", 100.0, time.Now())

	var reported []Discrepancy
	c, err := NewChecker(testConsistencyConfig(false), &stubTradeSource{}, ledger, func(ds []Discrepancy) {
		reported = append(reported, ds...)
	})
	require.NoError(t, err)

	c.Accept([]Discrepancy{{Type: DiscrepancyPnL, StrategyID: "s1", BridgeValue: "105.5"}})
	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.False(t, processed[0].Corrected)
	assert.InDelta(t, 100.0, ledger.Snapshot("s1").TotalPnL, 1e-9)
	assert.Equal(t, processed, reported)
	assert.Equal(t, int64(0), c.Metrics().CorrectedDiscrepancy)
}

func TestCheckerDetectsDuplicateAndOrphanTrades(t *testing.T) {
	ledger := NewShadowLedger()
	recordLongTrade(ledger, "t-1", "s1", "BTCUSDT", 0.5)

	source := &stubTradeSource{trades: []exchange.TradeRecord{
		{TradeID: "t-1", StrategyID: "s1", Symbol: "BTCUSDT", Side: "long", Amount: 0.5},
		{TradeID: "t-1", StrategyID: "s1", Symbol: "BTCUSDT", Side: "long", Amount: 0.5},
		{TradeID: "t-9", StrategyID: "s1", Symbol: "BTCUSDT", Side: "long", Amount: 0.1},
	}}
	c, err := NewChecker(testConsistencyConfig(true), source, ledger, nil)
	require.NoError(t, err)

	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)

	byType := map[DiscrepancyType][]Discrepancy{}
	for _, d := range processed {
		byType[d.Type] = append(byType[d.Type], d)
	}
	require.Len(t, byType[DiscrepancyDuplicate], 1)
	assert.Equal(t, "t-1", byType[DiscrepancyDuplicate][0].BridgeValue)
	require.Len(t, byType[DiscrepancyOrphanOrder], 1)
	assert.Equal(t, "t-9", byType[DiscrepancyOrphanOrder][0].BridgeValue)

	// Ledger wins on existence: the bridge-only trade stays out.
	assert.False(t, ledger.HasTrade("t-9"))
}

func TestCheckerCorrectsPositionSignMismatch(t *testing.T) {
	ledger := NewShadowLedger()
	recordLongTrade(ledger, "t-1", "s1", "BTCUSDT", 1.0)

	source := &stubTradeSource{trades: []exchange.TradeRecord{
		{TradeID: "t-1", StrategyID: "s1", Symbol: "BTCUSDT", Side: "short", Amount: 0.4},
	}}
	c, err := NewChecker(testConsistencyConfig(true), source, ledger, nil)
	require.NoError(t, err)

	processed, err := c.CheckNow(context.Background())
	require.NoError(t, err)

	var sign *Discrepancy
	for i := range processed {
		if processed[i].Type == DiscrepancyPositionSign {
			sign = &processed[i]
		}
	}
	require.NotNil(t, sign)
	assert.True(t, sign.Corrected)
	assert.InDelta(t, -0.4, ledger.Positions()["BTCUSDT"].Amount, 1e-9)
}

func TestCheckerSurvivesTradeSourceFailure(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.RecordPnL("s1", 100.0, time.Now())

	c, err := NewChecker(testConsistencyConfig(true), &stubTradeSource{err: fmt.Errorf("bridge unreachable")}, ledger, nil)
	require.NoError(t, err)

	c.Accept([]Discrepancy{{Type: DiscrepancyPnL, StrategyID: "s1", BridgeValue: "105.5"}})
	processed, err := c.CheckNow(context.Background())

	// Queued candidates still resolve even when the scan fails.
	assert.ErrorContains(t, err, "bridge unreachable")
	require.Len(t, processed, 1)
	assert.True(t, processed[0].Corrected)
	assert.Equal(t, int64(1), c.Metrics().TotalChecks)
}

func TestNewCheckerValidatesDependencies(t *testing.T) {
	_, err := NewChecker(testConsistencyConfig(true), nil, NewShadowLedger(), nil)
	assert.Error(t, err)
	_, err = NewChecker(testConsistencyConfig(true), &stubTradeSource{}, nil, nil)
	assert.Error(t, err)
}
