package resilience

import (
	"strings"
	"sync"
	"time"

	"bastion/internal/gateway/exchange"
	"bastion/internal/types"

	"github.com/shopspring/decimal"
)

// ShadowLedger is the orchestrator's locally accumulated view of
// execution state: per-strategy totals, executed trades and net
// positions. The synchronizer diffs it against the bridge's
// authoritative records; the consistency checker corrects it.
type ShadowLedger struct {
	mu         sync.RWMutex
	strategies map[string]*shadowStrategy
	trades     map[string]exchange.TradeRecord
	positions  map[string]exchange.PositionRecord
}

type shadowStrategy struct {
	totalTrades int64
	totalVolume decimal.Decimal
	totalPnL    decimal.Decimal
	parameters  map[string]float64
	updatedAt   time.Time
}

func NewShadowLedger() *ShadowLedger {
	return &ShadowLedger{
		strategies: make(map[string]*shadowStrategy),
		trades:     make(map[string]exchange.TradeRecord),
		positions:  make(map[string]exchange.PositionRecord),
	}
}

// RecordExecution folds a successful execution into the shadow state.
func (l *ShadowLedger) RecordExecution(signal types.TradingSignal, res types.ExecutionResult) {
	if l == nil || !res.Success || res.OrderID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.strategy(signal.StrategyID)
	st.totalTrades++
	st.totalVolume = st.totalVolume.Add(decimal.NewFromFloat(res.FilledQty * res.AvgPrice))
	if res.Timestamp.After(st.updatedAt) {
		st.updatedAt = res.Timestamp
	}

	l.trades[res.OrderID] = exchange.TradeRecord{
		TradeID:    res.OrderID,
		OrderID:    res.OrderID,
		StrategyID: signal.StrategyID,
		Symbol:     signal.Symbol,
		Side:       string(signal.Direction),
		Amount:     res.FilledQty,
		Price:      res.AvgPrice,
		ExecutedAt: res.Timestamp,
	}

	signed := res.FilledQty
	if signal.Direction == types.DirectionShort {
		signed = -signed
	}
	pos := l.positions[signal.Symbol]
	pos.Symbol = signal.Symbol
	pos.Amount += signed
	if res.AvgPrice > 0 {
		pos.AvgEntry = res.AvgPrice
	}
	pos.UpdatedAt = res.Timestamp
	l.positions[signal.Symbol] = pos
}

// RecordPnL adds realized P&L reported for a strategy.
func (l *ShadowLedger) RecordPnL(strategyID string, pnl float64, at time.Time) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.strategy(strategyID)
	st.totalPnL = st.totalPnL.Add(decimal.NewFromFloat(pnl))
	if at.After(st.updatedAt) {
		st.updatedAt = at
	}
}

// SetParameters replaces the locally tracked strategy parameters.
func (l *ShadowLedger) SetParameters(strategyID string, params map[string]float64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.strategy(strategyID)
	st.parameters = make(map[string]float64, len(params))
	for k, v := range params {
		st.parameters[k] = v
	}
}

// Snapshot returns the local totals in the same record shape the
// bridge reports, so the two views diff field by field.
func (l *ShadowLedger) Snapshot(strategyID string) exchange.StrategyExecutionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec := exchange.StrategyExecutionRecord{StrategyID: strategyID}
	st, ok := l.strategies[strategyID]
	if !ok {
		return rec
	}
	rec.TotalTrades = st.totalTrades
	rec.TotalVolume, _ = st.totalVolume.Float64()
	rec.TotalPnL, _ = st.totalPnL.Float64()
	rec.UpdatedAt = st.updatedAt
	if len(st.parameters) > 0 {
		rec.Parameters = make(map[string]float64, len(st.parameters))
		for k, v := range st.parameters {
			rec.Parameters[k] = v
		}
	}
	return rec
}

// Trades returns a copy of all locally recorded trades.
func (l *ShadowLedger) Trades() []exchange.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]exchange.TradeRecord, 0, len(l.trades))
	for _, tr := range l.trades {
		out = append(out, tr)
	}
	return out
}

// HasTrade reports whether a trade id exists in the local ledger.
func (l *ShadowLedger) HasTrade(tradeID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.trades[tradeID]
	return ok
}

// Positions returns a copy of the per-symbol net positions.
func (l *ShadowLedger) Positions() map[string]exchange.PositionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]exchange.PositionRecord, len(l.positions))
	for sym, pos := range l.positions {
		out[sym] = pos
	}
	return out
}

// CorrectPnL overwrites the local P&L total with the bridge's value.
// The bridge is the venue of record for P&L.
func (l *ShadowLedger) CorrectPnL(strategyID string, pnl float64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.strategy(strategyID)
	st.totalPnL = decimal.NewFromFloat(pnl)
	st.updatedAt = time.Now()
}

// CorrectTradeCount overwrites the local trade count.
func (l *ShadowLedger) CorrectTradeCount(strategyID string, count int64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.strategy(strategyID)
	st.totalTrades = count
	st.updatedAt = time.Now()
}

// CorrectPosition overwrites a symbol's net position with the bridge's
// view.
func (l *ShadowLedger) CorrectPosition(symbol string, amount float64) {
	if l == nil {
		return
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := l.positions[symbol]
	pos.Symbol = symbol
	pos.Amount = amount
	pos.UpdatedAt = time.Now()
	l.positions[symbol] = pos
}

// caller must hold l.mu
func (l *ShadowLedger) strategy(strategyID string) *shadowStrategy {
	st, ok := l.strategies[strategyID]
	if !ok {
		st = &shadowStrategy{
			totalVolume: decimal.Zero,
			totalPnL:    decimal.Zero,
		}
		l.strategies[strategyID] = st
	}
	return st
}
