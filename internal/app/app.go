// Package app wires the resilience subsystem together and owns its
// lifecycle.
package app

import (
	"context"
	"fmt"

	bcfg "bastion/internal/config"
	"bastion/internal/logger"
	"bastion/internal/resilience"
	"bastion/internal/store/audit"
	statushttp "bastion/internal/transport/http/status"
	"bastion/internal/types"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *bcfg.Config
	orch     *resilience.Orchestrator
	recovery *resilience.RecoveryManager
	sync     *resilience.Synchronizer
	checker  *resilience.Checker
	audit    *audit.Store
	status   *statushttp.Server
}

// NewApp builds the application object without starting anything.
func NewApp(cfg *bcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run starts the periodic layers and the status server, then blocks
// until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.status.Start(ctx); err != nil {
			return fmt.Errorf("status server error: %w", err)
		}
		return nil
	})

	if a.sync != nil {
		a.sync.Start(ctx)
	}
	if a.checker != nil {
		a.checker.Start(ctx)
	}

	logger.Infof("bastion running env=%s http=%s", a.cfg.App.Env, a.cfg.App.HTTPAddr)
	return group.Wait()
}

// Execute routes one trading signal through the failover orchestrator
// and records the outcome in the audit trail.
func (a *App) Execute(ctx context.Context, signal types.TradingSignal) types.ExecutionResult {
	res := a.orch.ExecuteWithFailover(ctx, signal)
	if a.audit != nil {
		if err := a.audit.RecordExecution(ctx, signal, res); err != nil {
			logger.Warnf("audit: persisting execution %s failed: %v", signal.ID, err)
		}
	}
	return res
}

// Orchestrator exposes the failover orchestrator (for test harnesses).
func (a *App) Orchestrator() *resilience.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Close releases timers, episodes and the audit database. Idempotent.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.sync != nil {
		a.sync.Cleanup()
	}
	if a.checker != nil {
		a.checker.Cleanup()
	}
	a.recovery.Cleanup()
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Warnf("closing audit store failed: %v", err)
		}
	}
}
