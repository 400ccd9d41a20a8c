package resilience

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/logger"
	"bastion/internal/scheduler"
)

// TradeSource is the slice of the bridge interface the consistency
// checker needs: the full executed-trade list.
type TradeSource interface {
	ListTrades(ctx context.Context) ([]exchange.TradeRecord, error)
}

// Checker runs deep consistency passes over the trade history and net
// positions, and resolves the discrepancy candidates the synchronizer
// queues up. Resolution policy: the bridge is the venue of record for
// P&L, trade counts and position size; the local ledger wins on order
// existence, so bridge-only orders are flagged but never imported.
type Checker struct {
	cfg    bcfg.ConsistencyConfig
	source TradeSource
	ledger *ShadowLedger
	report func([]Discrepancy)
	runner *scheduler.IntervalRunner

	mu        sync.Mutex
	queued    []Discrepancy
	checks    int64
	detected  int64
	corrected int64
	lastCheck time.Time
}

func NewChecker(cfg bcfg.ConsistencyConfig, source TradeSource, ledger *ShadowLedger, report func([]Discrepancy)) (*Checker, error) {
	if source == nil {
		return nil, fmt.Errorf("consistency checker requires a trade source")
	}
	if ledger == nil {
		return nil, fmt.Errorf("consistency checker requires the shadow ledger")
	}
	return &Checker{
		cfg:    cfg,
		source: source,
		ledger: ledger,
		report: report,
		runner: scheduler.NewIntervalRunner("consistency-check", cfg.Interval()),
	}, nil
}

// Start launches the periodic deep check. Ticks that land while a
// pass is still running are skipped.
func (c *Checker) Start(ctx context.Context) {
	if c == nil {
		return
	}
	c.runner.Start(ctx, func(ctx context.Context) {
		if _, err := c.CheckNow(ctx); err != nil {
			logger.Warnf("consistency pass failed: %v", err)
		}
	})
}

// Accept queues discrepancy candidates for resolution on the next
// pass. The synchronizer is the usual caller.
func (c *Checker) Accept(ds []Discrepancy) {
	if c == nil || len(ds) == 0 {
		return
	}
	c.mu.Lock()
	c.queued = append(c.queued, ds...)
	c.mu.Unlock()
}

// CheckNow runs one full pass: resolve queued candidates, then scan
// the bridge trade list for duplicates and orphans and the position
// book for sign flips. Returns everything it processed.
func (c *Checker) CheckNow(ctx context.Context) ([]Discrepancy, error) {
	if c == nil {
		return nil, fmt.Errorf("consistency checker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	pending := c.queued
	c.queued = nil
	c.mu.Unlock()

	processed := make([]Discrepancy, 0, len(pending))
	for _, d := range pending {
		processed = append(processed, c.resolve(d))
	}

	structural, err := c.scan(ctx)
	processed = append(processed, structural...)

	var correctedNow int64
	for _, d := range processed {
		if d.Corrected {
			correctedNow++
		}
	}

	c.mu.Lock()
	c.checks++
	c.detected += int64(len(processed))
	c.corrected += correctedNow
	c.lastCheck = time.Now()
	c.mu.Unlock()

	if len(processed) > 0 {
		logger.Infof("consistency pass processed %d discrepancies, corrected %d", len(processed), correctedNow)
		if c.report != nil {
			c.report(processed)
		}
	}
	return processed, err
}

// resolve applies the auto-correct policy to one queued candidate.
func (c *Checker) resolve(d Discrepancy) Discrepancy {
	if !c.cfg.AutoCorrect {
		return d
	}
	switch d.Type {
	case DiscrepancyPnL:
		if v, err := strconv.ParseFloat(d.BridgeValue, 64); err == nil {
			c.ledger.CorrectPnL(d.StrategyID, v)
			d.Corrected = true
			logger.Infof("corrected local P&L for %s to bridge value %s", d.StrategyID, d.BridgeValue)
		}
	case DiscrepancyTradeCount:
		if v, err := strconv.ParseInt(d.BridgeValue, 10, 64); err == nil {
			c.ledger.CorrectTradeCount(d.StrategyID, v)
			d.Corrected = true
			logger.Infof("corrected local trade count for %s to bridge value %s", d.StrategyID, d.BridgeValue)
		}
	default:
		// Parameter drift and timestamp skew are surfaced, never
		// rewritten locally.
	}
	return d
}

// scan pulls the bridge's trade list and diffs structure: duplicated
// trade ids on the bridge side, bridge trades the local ledger never
// saw, and per-symbol positions whose sign disagrees with the local
// book.
func (c *Checker) scan(ctx context.Context) ([]Discrepancy, error) {
	pullCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	trades, err := c.source.ListTrades(pullCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("pulling bridge trades failed: %w", err)
	}

	now := time.Now()
	var out []Discrepancy

	seen := make(map[string]bool, len(trades))
	bridgePositions := make(map[string]float64)
	for _, tr := range trades {
		if tr.TradeID == "" {
			continue
		}
		if seen[tr.TradeID] {
			out = append(out, Discrepancy{
				Type:        DiscrepancyDuplicate,
				StrategyID:  tr.StrategyID,
				Field:       "trade_id",
				BridgeValue: tr.TradeID,
				DetectedAt:  now,
			})
			continue
		}
		seen[tr.TradeID] = true

		signed := tr.Amount
		if tr.Side == "short" || tr.Side == "sell" {
			signed = -signed
		}
		bridgePositions[tr.Symbol] += signed

		if !c.ledger.HasTrade(tr.TradeID) {
			// Local wins on existence: flag the bridge-only order,
			// do not import it.
			out = append(out, Discrepancy{
				Type:        DiscrepancyOrphanOrder,
				StrategyID:  tr.StrategyID,
				Field:       "trade_id",
				BridgeValue: tr.TradeID,
				DetectedAt:  now,
			})
		}
	}

	for sym, local := range c.ledger.Positions() {
		bridge, ok := bridgePositions[sym]
		if !ok || local.Amount == 0 || bridge == 0 {
			continue
		}
		if (local.Amount > 0) != (bridge > 0) {
			d := Discrepancy{
				Type:        DiscrepancyPositionSign,
				StrategyID:  "",
				Field:       "position." + sym,
				BridgeValue: formatFloat(bridge),
				LocalValue:  formatFloat(local.Amount),
				Magnitude:   math.Abs(bridge - local.Amount),
				DetectedAt:  now,
			}
			if c.cfg.AutoCorrect {
				c.ledger.CorrectPosition(sym, bridge)
				d.Corrected = true
				logger.Warnf("position sign for %s disagreed with bridge, local book rewritten to %s", sym, d.BridgeValue)
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// Metrics returns a snapshot copy of the counters.
func (c *Checker) Metrics() ConsistencyMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConsistencyMetrics{
		TotalChecks:          c.checks,
		DetectedDiscrepancy:  c.detected,
		CorrectedDiscrepancy: c.corrected,
		LastCheckAt:          c.lastCheck,
	}
}

// Cleanup stops the periodic timer. Safe to call repeatedly.
func (c *Checker) Cleanup() {
	if c == nil {
		return
	}
	c.runner.Stop()
}
