package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/config/loader"
	"bastion/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReporter struct {
	records map[string]*exchange.StrategyExecutionRecord
	err     error
}

func (s *stubReporter) GetStrategyState(ctx context.Context, strategyID string) (*exchange.StrategyExecutionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[strategyID], nil
}

func testSyncConfig() bcfg.SyncConfig {
	return bcfg.SyncConfig{
		IntervalMs:           30000,
		PnLTolerance:         0.01,
		TradeCountTolerance:  0,
		TimestampToleranceMs: 1000,
		ParameterTolerance:   0.001,
	}
}

func trackedOne(id string) []loader.TrackedStrategy {
	return []loader.TrackedStrategy{{ID: id}}
}

func TestSyncWithinToleranceReportsNothing(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	ledger.RecordPnL("s1", 100.0, now)

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"s1": {StrategyID: "s1", TotalPnL: 100.009, UpdatedAt: now},
	}}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, trackedOne("s1"), nil)
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)

	metrics := s.Metrics()
	assert.Equal(t, int64(1), metrics.TotalSyncs)
	assert.Equal(t, int64(0), metrics.DiscrepancyCount)
}

func TestSyncFlagsPnLBeyondTolerance(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	ledger.RecordPnL("s1", 100.0, now)

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"s1": {StrategyID: "s1", TotalPnL: 101.0, UpdatedAt: now},
	}}

	var sunk []Discrepancy
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, trackedOne("s1"), func(ds []Discrepancy) {
		sunk = append(sunk, ds...)
	})
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)

	d := found[0]
	assert.Equal(t, DiscrepancyPnL, d.Type)
	assert.Equal(t, "s1", d.StrategyID)
	assert.Equal(t, "101", d.BridgeValue)
	assert.Equal(t, "100", d.LocalValue)
	assert.InDelta(t, 1.0, d.Magnitude, 1e-9)
	assert.Equal(t, found, sunk)
	assert.Equal(t, int64(1), s.Metrics().DiscrepancyCount)
}

func TestSyncFlagsTradeCountAndTimestamp(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	ledger.RecordPnL("s1", 50.0, now)
	ledger.CorrectTradeCount("s1", 10)

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"s1": {
			StrategyID:  "s1",
			TotalPnL:    50.0,
			TotalTrades: 12,
			UpdatedAt:   time.Now().Add(5 * time.Second),
		},
	}}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, trackedOne("s1"), nil)
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)

	byType := map[DiscrepancyType]Discrepancy{}
	for _, d := range found {
		byType[d.Type] = d
	}
	require.Contains(t, byType, DiscrepancyTradeCount)
	assert.Equal(t, "12", byType[DiscrepancyTradeCount].BridgeValue)
	assert.Equal(t, "10", byType[DiscrepancyTradeCount].LocalValue)
	require.Contains(t, byType, DiscrepancyTimestamp)
	assert.Greater(t, byType[DiscrepancyTimestamp].Magnitude, 1000.0)
}

func TestSyncFlagsParameterDrift(t *testing.T) {
	ledger := NewShadowLedger()
	ledger.SetParameters("s1", map[string]float64{"stoploss": -0.10, "roi": 0.05})

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"s1": {
			StrategyID: "s1",
			Parameters: map[string]float64{"stoploss": -0.12, "roi": 0.05, "extra": 1.0},
		},
	}}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, trackedOne("s1"), nil)
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, DiscrepancyParameter, found[0].Type)
	assert.Equal(t, "parameters.stoploss", found[0].Field)
}

func TestSyncPerStrategyToleranceOverride(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	ledger.RecordPnL("loose", 100.0, now)

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"loose": {StrategyID: "loose", TotalPnL: 101.0, UpdatedAt: now},
	}}
	tracked := []loader.TrackedStrategy{{ID: "loose", PnLTolerance: 5.0}}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, tracked, nil)
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSyncContinuesPastFailingStrategy(t *testing.T) {
	ledger := NewShadowLedger()
	now := time.Now()
	ledger.RecordPnL("s2", 0, now)

	reporter := &stubReporter{records: map[string]*exchange.StrategyExecutionRecord{
		"s2": {StrategyID: "s2", TotalPnL: 10.0, UpdatedAt: now},
	}}
	tracked := []loader.TrackedStrategy{{ID: "missing"}, {ID: "s2"}}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, tracked, nil)
	require.NoError(t, err)

	// A nil record for one strategy must not abort the pass.
	found, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "s2", found[0].StrategyID)
}

func TestSyncReportsPullError(t *testing.T) {
	ledger := NewShadowLedger()
	reporter := &stubReporter{err: fmt.Errorf("bridge unreachable")}
	s, err := NewSynchronizer(testSyncConfig(), reporter, ledger, trackedOne("s1"), nil)
	require.NoError(t, err)

	found, err := s.SyncNow(context.Background())
	assert.Empty(t, found)
	assert.ErrorContains(t, err, "bridge unreachable")
	assert.Equal(t, int64(1), s.Metrics().TotalSyncs)
}

func TestNewSynchronizerValidatesDependencies(t *testing.T) {
	_, err := NewSynchronizer(testSyncConfig(), nil, NewShadowLedger(), nil, nil)
	assert.Error(t, err)
	_, err = NewSynchronizer(testSyncConfig(), &stubReporter{}, nil, nil, nil)
	assert.Error(t, err)
}
