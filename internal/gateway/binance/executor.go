package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/logger"
	symbolpkg "bastion/internal/pkg/symbol"
	"bastion/internal/types"

	"github.com/adshao/go-binance/v2/futures"
)

// Executor places orders straight against Binance futures, bypassing
// the bridge. It is the failover path of record.
type Executor struct {
	client *futures.Client
	cfg    *bcfg.BinanceConfig
}

func NewExecutor(cfg *bcfg.BinanceConfig) (*Executor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("binance executor is disabled")
	}
	futures.UseTestnet = cfg.Testnet
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	return &Executor{client: client, cfg: cfg}, nil
}

func (e *Executor) Name() string {
	return "binance"
}

func (e *Executor) Execute(ctx context.Context, signal types.TradingSignal) (*types.ExecutionResult, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("binance executor not initialized")
	}
	pair := symbolpkg.Parse(signal.Symbol).Binance()
	if pair == "" {
		return nil, fmt.Errorf("cannot map symbol %q to a binance pair", signal.Symbol)
	}
	qty, err := e.orderQuantity(signal)
	if err != nil {
		return nil, err
	}

	side := futures.SideTypeBuy
	if signal.Direction == types.DirectionShort {
		side = futures.SideTypeSell
	}

	timeout := time.Duration(e.cfg.OrderTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	orderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Infof("binance execute: %s %s qty=%s", pair, side, qty)

	resp, err := e.client.NewCreateOrderService().
		Symbol(pair).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(orderCtx)
	if err != nil {
		logger.Errorf("binance order failed (pair=%s side=%s qty=%s): %v", pair, side, qty, err)
		return nil, fmt.Errorf("binance order failed: %w", err)
	}

	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	if avg <= 0 {
		avg = signal.Price
	}
	return &types.ExecutionResult{
		Success:   true,
		Method:    types.MethodDirect,
		OrderID:   strconv.FormatInt(resp.OrderID, 10),
		FilledQty: filled,
		AvgPrice:  avg,
		Timestamp: time.Now(),
	}, nil
}

// orderQuantity sizes a market order from the configured stake and the
// signal's reference price.
func (e *Executor) orderQuantity(signal types.TradingSignal) (string, error) {
	if signal.Price <= 0 {
		return "", fmt.Errorf("signal %s carries no reference price, cannot size order", signal.ID)
	}
	stake := e.cfg.OrderStakeUSD
	if stake <= 0 {
		return "", fmt.Errorf("binance.order_stake_usd not configured")
	}
	qty := stake / signal.Price
	if lev := e.cfg.DefaultLeverage; lev > 1 {
		qty *= float64(lev)
	}
	return strconv.FormatFloat(qty, 'f', 6, 64), nil
}
