package resilience

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/config/loader"
	"bastion/internal/gateway/exchange"
	"bastion/internal/logger"
	"bastion/internal/scheduler"

	"github.com/shopspring/decimal"
)

// StateReporter is the slice of the bridge interface the synchronizer
// needs: the authoritative per-strategy execution record.
type StateReporter interface {
	GetStrategyState(ctx context.Context, strategyID string) (*exchange.StrategyExecutionRecord, error)
}

// Synchronizer periodically pulls bridge state for each tracked
// strategy and diffs it against the shadow ledger. Only differences
// beyond the configured tolerances become discrepancy candidates, so
// rounding noise and sub-millisecond clock skew never trigger
// corrections.
type Synchronizer struct {
	cfg      bcfg.SyncConfig
	reporter StateReporter
	ledger   *ShadowLedger
	tracked  []loader.TrackedStrategy
	sink     func([]Discrepancy)
	runner   *scheduler.IntervalRunner

	mu            sync.Mutex
	totalSyncs    int64
	discrepancies int64
	lastSyncAt    time.Time
	lastSyncDur   time.Duration
}

func NewSynchronizer(cfg bcfg.SyncConfig, reporter StateReporter, ledger *ShadowLedger, tracked []loader.TrackedStrategy, sink func([]Discrepancy)) (*Synchronizer, error) {
	if reporter == nil {
		return nil, fmt.Errorf("synchronizer requires a state reporter")
	}
	if ledger == nil {
		return nil, fmt.Errorf("synchronizer requires the shadow ledger")
	}
	return &Synchronizer{
		cfg:      cfg,
		reporter: reporter,
		ledger:   ledger,
		tracked:  tracked,
		sink:     sink,
		runner:   scheduler.NewIntervalRunner("state-sync", cfg.Interval()),
	}, nil
}

// Start launches the periodic sync loop. Overlapping passes are
// skipped by the runner, never queued.
func (s *Synchronizer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.runner.Start(ctx, func(ctx context.Context) {
		if _, err := s.SyncNow(ctx); err != nil {
			logger.Warnf("state sync pass failed: %v", err)
		}
	})
}

// SyncNow runs one synchronization pass on demand and returns the
// discrepancy candidates it produced.
func (s *Synchronizer) SyncNow(ctx context.Context) ([]Discrepancy, error) {
	if s == nil {
		return nil, fmt.Errorf("synchronizer not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	var found []Discrepancy
	var firstErr error
	for _, strat := range s.tracked {
		pullCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		remote, err := s.reporter.GetStrategyState(pullCtx, strat.ID)
		cancel()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pulling state for %s failed: %w", strat.ID, err)
			}
			continue
		}
		if remote == nil {
			continue
		}
		local := s.ledger.Snapshot(strat.ID)
		found = append(found, s.compare(strat, remote, local)...)
	}

	s.mu.Lock()
	s.totalSyncs++
	s.discrepancies += int64(len(found))
	s.lastSyncAt = started
	s.lastSyncDur = time.Since(started)
	s.mu.Unlock()

	if len(found) > 0 {
		logger.Infof("state sync found %d discrepancy candidates", len(found))
		if s.sink != nil {
			s.sink(found)
		}
	}
	return found, firstErr
}

func (s *Synchronizer) compare(strat loader.TrackedStrategy, remote *exchange.StrategyExecutionRecord, local exchange.StrategyExecutionRecord) []Discrepancy {
	var out []Discrepancy
	now := time.Now()

	pnlTol := s.cfg.PnLTolerance
	if strat.PnLTolerance > 0 {
		pnlTol = strat.PnLTolerance
	}
	pnlDiff := decimal.NewFromFloat(remote.TotalPnL).Sub(decimal.NewFromFloat(local.TotalPnL)).Abs()
	if pnlDiff.GreaterThan(decimal.NewFromFloat(pnlTol)) {
		out = append(out, Discrepancy{
			Type:        DiscrepancyPnL,
			StrategyID:  strat.ID,
			Field:       "total_pnl",
			BridgeValue: formatFloat(remote.TotalPnL),
			LocalValue:  formatFloat(local.TotalPnL),
			Magnitude:   pnlDiff.InexactFloat64(),
			DetectedAt:  now,
		})
	}

	tradeTol := int64(s.cfg.TradeCountTolerance)
	if strat.TradeCountTolerance > 0 {
		tradeTol = int64(strat.TradeCountTolerance)
	}
	if diff := absInt64(remote.TotalTrades - local.TotalTrades); diff > tradeTol {
		out = append(out, Discrepancy{
			Type:        DiscrepancyTradeCount,
			StrategyID:  strat.ID,
			Field:       "total_trades",
			BridgeValue: strconv.FormatInt(remote.TotalTrades, 10),
			LocalValue:  strconv.FormatInt(local.TotalTrades, 10),
			Magnitude:   float64(diff),
			DetectedAt:  now,
		})
	}

	if !remote.UpdatedAt.IsZero() && !local.UpdatedAt.IsZero() {
		skew := remote.UpdatedAt.Sub(local.UpdatedAt)
		if skew < 0 {
			skew = -skew
		}
		if skew > s.cfg.TimestampTolerance() {
			out = append(out, Discrepancy{
				Type:        DiscrepancyTimestamp,
				StrategyID:  strat.ID,
				Field:       "updated_at",
				BridgeValue: remote.UpdatedAt.Format(time.RFC3339Nano),
				LocalValue:  local.UpdatedAt.Format(time.RFC3339Nano),
				Magnitude:   float64(skew.Milliseconds()),
				DetectedAt:  now,
			})
		}
	}

	out = append(out, s.compareParameters(strat.ID, remote.Parameters, local.Parameters, now)...)
	return out
}

// compareParameters flags relative drift beyond the configured
// fraction. Parameters present on only one side are ignored here; the
// consistency checker treats structural absence separately.
func (s *Synchronizer) compareParameters(strategyID string, remote, local map[string]float64, now time.Time) []Discrepancy {
	if len(remote) == 0 || len(local) == 0 {
		return nil
	}
	var out []Discrepancy
	for name, rv := range remote {
		lv, ok := local[name]
		if !ok {
			continue
		}
		base := math.Max(math.Abs(rv), math.Abs(lv))
		if base == 0 {
			continue
		}
		drift := math.Abs(rv-lv) / base
		if drift > s.cfg.ParameterTolerance {
			out = append(out, Discrepancy{
				Type:        DiscrepancyParameter,
				StrategyID:  strategyID,
				Field:       "parameters." + name,
				BridgeValue: formatFloat(rv),
				LocalValue:  formatFloat(lv),
				Magnitude:   drift,
				DetectedAt:  now,
			})
		}
	}
	return out
}

// Metrics returns a snapshot copy of the counters.
func (s *Synchronizer) Metrics() SyncMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncMetrics{
		TotalSyncs:        s.totalSyncs,
		DiscrepancyCount:  s.discrepancies,
		LastSyncAt:        s.lastSyncAt,
		LastSyncDuration:  s.lastSyncDur,
		StrategiesTracked: len(s.tracked),
	}
}

// Cleanup stops the periodic timer. Safe to call repeatedly.
func (s *Synchronizer) Cleanup() {
	if s == nil {
		return
	}
	s.runner.Stop()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
