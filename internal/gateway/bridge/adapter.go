package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/logger"
	symbolpkg "bastion/internal/pkg/symbol"
	"bastion/internal/types"
)

// Adapter exposes the bridge client through the executor interfaces.
type Adapter struct {
	client *Client
	cfg    *bcfg.BridgeConfig
}

func NewAdapter(client *Client, cfg *bcfg.BridgeConfig) *Adapter {
	return &Adapter{
		client: client,
		cfg:    cfg,
	}
}

func (a *Adapter) Name() string {
	return "bridge"
}

// InstanceID is the logical connection id the recovery manager tracks.
func (a *Adapter) InstanceID() string {
	if a == nil || a.cfg == nil {
		return ""
	}
	return a.cfg.InstanceID
}

func (a *Adapter) Execute(ctx context.Context, signal types.TradingSignal) (*types.ExecutionResult, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("bridge adapter not initialized")
	}
	payload := ExecutePayload{
		SignalID:   signal.ID,
		StrategyID: signal.StrategyID,
		Pair:       a.toBridgePair(signal.Symbol),
		Side:       sideForDirection(signal.Direction),
		Confidence: signal.Confidence,
		Source:     signal.Source,
	}
	if signal.Price > 0 {
		price := signal.Price
		payload.Price = &price
	}

	logger.Debugf("bridge execute: %s %s strategy=%s", signal.Symbol, payload.Side, signal.StrategyID)

	resp, err := a.client.Execute(ctx, payload)
	if err != nil {
		logger.Errorf("bridge execute failed (pair=%s side=%s signal=%s): %v", payload.Pair, payload.Side, signal.ID, err)
		return nil, fmt.Errorf("bridge execute failed: %w", err)
	}
	return &types.ExecutionResult{
		Success:   true,
		Method:    types.MethodBridge,
		OrderID:   resp.OrderID,
		FilledQty: resp.FilledQty,
		AvgPrice:  resp.AvgPrice,
		Timestamp: time.Now(),
	}, nil
}

func (a *Adapter) GetConnections(ctx context.Context) (map[string]exchange.ConnectionDescriptor, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("bridge adapter not initialized")
	}
	return a.client.Connections(ctx)
}

func (a *Adapter) GetStrategyState(ctx context.Context, strategyID string) (*exchange.StrategyExecutionRecord, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("bridge adapter not initialized")
	}
	return a.client.StrategyState(ctx, strategyID)
}

// ListTrades converts bridge trades into the record shape the
// consistency checker compares against the local ledger.
func (a *Adapter) ListTrades(ctx context.Context) ([]exchange.TradeRecord, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("bridge adapter not initialized")
	}
	trades, err := a.client.ListTrades(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.TradeRecord, 0, len(trades))
	for _, tr := range trades {
		out = append(out, exchange.TradeRecord{
			TradeID:    tr.TradeID,
			OrderID:    tr.OrderID,
			StrategyID: tr.StrategyID,
			Symbol:     symbolpkg.Parse(tr.Pair).Binance(),
			Side:       strings.ToLower(strings.TrimSpace(tr.Side)),
			Amount:     tr.Amount,
			Price:      tr.Price,
			ExecutedAt: parseBridgeTime(tr.ExecutedAt),
		})
	}
	return out, nil
}

// ConnectionFactory returns the factory the recovery manager calls to
// re-establish this adapter's connection.
func (a *Adapter) ConnectionFactory() exchange.ConnectionFactory {
	return func(ctx context.Context) (*exchange.ConnectionDescriptor, error) {
		if a == nil || a.client == nil {
			return nil, fmt.Errorf("bridge adapter not initialized")
		}
		return a.client.Ping(ctx, a.InstanceID())
	}
}

func (a *Adapter) toBridgePair(sym string) string {
	settle := ""
	if a.cfg != nil {
		settle = a.cfg.SettleCurrency
	}
	return symbolpkg.Parse(sym).Bridge(settle)
}

func sideForDirection(dir types.Direction) string {
	if dir == types.DirectionShort {
		return "short"
	}
	return "long"
}
