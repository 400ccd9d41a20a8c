package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/logger"
	"bastion/internal/pkg/circuit"
	"bastion/internal/types"
)

// Orchestrator is the entry point for trading-signal execution. It
// tries the bridge first, falls back to the direct path on failure and
// triggers background recovery of the bridge connection.
type Orchestrator struct {
	cfg      bcfg.FailoverConfig
	bridge   exchange.Executor
	direct   exchange.Executor
	recovery *RecoveryManager
	bus      *Bus
	ledger   *ShadowLedger

	instanceID string
	factory    exchange.ConnectionFactory

	// breaker guards the direct exchange path only. The bridge must be
	// retried on every signal so a transient blip cannot pin the
	// system to the direct path.
	breaker *circuit.CircuitBreaker

	mu            sync.Mutex
	failoverCount int64
	recoveryCount int64
	state         OrchestratorState
}

// OrchestratorParams bundles the orchestrator dependencies.
type OrchestratorParams struct {
	Config     bcfg.FailoverConfig
	Bridge     exchange.Executor
	Direct     exchange.Executor
	Recovery   *RecoveryManager
	Bus        *Bus
	Ledger     *ShadowLedger
	InstanceID string
	Factory    exchange.ConnectionFactory
}

func NewOrchestrator(p OrchestratorParams) (*Orchestrator, error) {
	if p.Bridge == nil || p.Direct == nil {
		return nil, fmt.Errorf("orchestrator requires bridge and direct executors")
	}
	if p.Recovery == nil {
		return nil, fmt.Errorf("orchestrator requires a recovery manager")
	}
	if p.InstanceID == "" {
		return nil, fmt.Errorf("orchestrator requires the bridge instance id")
	}
	ledger := p.Ledger
	if ledger == nil {
		ledger = NewShadowLedger()
	}
	o := &Orchestrator{
		cfg:        p.Config,
		bridge:     p.Bridge,
		direct:     p.Direct,
		recovery:   p.Recovery,
		bus:        p.Bus,
		ledger:     ledger,
		instanceID: p.InstanceID,
		factory:    p.Factory,
		breaker:    circuit.NewCircuitBreaker("direct-executor", p.Config.BreakerThreshold, p.Config.BreakerCooldown()),
		state:      StateNormal,
	}
	if o.bus != nil {
		o.bus.Subscribe(o.onEvent)
	}
	return o, nil
}

// ExecuteWithFailover runs one signal through the bridge, falling back
// to the direct executor. Both paths failing is an expected operating
// condition: the result carries the error, nothing is thrown.
func (o *Orchestrator) ExecuteWithFailover(ctx context.Context, signal types.TradingSignal) types.ExecutionResult {
	if o == nil {
		return types.Failed(types.MethodBridge, fmt.Errorf("orchestrator not initialized"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	bridgeCtx, cancel := context.WithTimeout(ctx, o.executionTimeout())
	res, err := o.bridge.Execute(bridgeCtx, signal)
	cancel()
	if err == nil && res != nil && res.Success {
		o.ledger.RecordExecution(signal, *res)
		return *res
	}
	if err == nil {
		err = fmt.Errorf("bridge returned unsuccessful result")
	}

	o.noteFailover(signal, err)

	directRes, directErr := o.executeDirect(ctx, signal)
	if directErr != nil {
		logger.Errorf("both execution paths failed signal=%s symbol=%s: bridge=%v direct=%v", signal.ID, signal.Symbol, err, directErr)
		return types.Failed(types.MethodDirect, fmt.Errorf("bridge: %v; direct: %w", err, directErr))
	}
	o.ledger.RecordExecution(signal, *directRes)
	return *directRes
}

func (o *Orchestrator) executeDirect(ctx context.Context, signal types.TradingSignal) (*types.ExecutionResult, error) {
	var res *types.ExecutionResult
	err := o.breaker.Do(func() error {
		directCtx, cancel := context.WithTimeout(ctx, o.executionTimeout())
		defer cancel()
		r, err := o.direct.Execute(directCtx, signal)
		if err != nil {
			return err
		}
		if r == nil || !r.Success {
			return fmt.Errorf("direct executor returned unsuccessful result")
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// noteFailover updates counters, emits the failover event and kicks
// off recovery. A burst of failing signals starts at most one episode.
func (o *Orchestrator) noteFailover(signal types.TradingSignal, cause error) {
	o.mu.Lock()
	o.failoverCount++
	o.state = StateRecovering
	o.mu.Unlock()

	logger.Warnf("failover to direct path signal=%s symbol=%s: %v", signal.ID, signal.Symbol, cause)
	o.publish(Event{
		Type:       EventFailover,
		InstanceID: o.instanceID,
		StrategyID: signal.StrategyID,
		SignalID:   signal.ID,
		Err:        cause,
	})

	if o.factory != nil && !o.recovery.Recovering(o.instanceID) {
		o.recovery.StartRecovery(o.instanceID, o.factory)
	}
}

func (o *Orchestrator) onEvent(evt Event) {
	if evt.Type != EventRecoverySuccessful || evt.InstanceID != o.instanceID {
		return
	}
	o.mu.Lock()
	wasRecovering := o.state == StateRecovering
	o.state = StateNormal
	if wasRecovering {
		o.recoveryCount++
	}
	o.mu.Unlock()
	if !wasRecovering {
		return
	}
	logger.Infof("bridge recovered, back to normal mode instance=%s", o.instanceID)
	o.publish(Event{
		Type:       EventRecoveryCompleted,
		InstanceID: o.instanceID,
		Attempt:    evt.Attempt,
		Elapsed:    evt.Elapsed,
	})
}

// Ledger exposes the shadow ledger for the sync/consistency layers.
func (o *Orchestrator) Ledger() *ShadowLedger {
	if o == nil {
		return nil
	}
	return o.ledger
}

// Metrics returns a snapshot copy of the counters.
func (o *Orchestrator) Metrics() FailoverMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return FailoverMetrics{
		FailoverCount: o.failoverCount,
		RecoveryCount: o.recoveryCount,
		CurrentState:  o.state,
	}
}

func (o *Orchestrator) executionTimeout() time.Duration {
	if t := o.cfg.ExecutionTimeout(); t > 0 {
		return t
	}
	return 8 * time.Second
}

func (o *Orchestrator) publish(evt Event) {
	if o.bus != nil {
		o.bus.Publish(evt)
	}
}
