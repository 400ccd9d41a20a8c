package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/config/loader"
	"bastion/internal/gateway/binance"
	"bastion/internal/gateway/bridge"
	"bastion/internal/gateway/notifier"
	"bastion/internal/logger"
	"bastion/internal/resilience"
	"bastion/internal/store/audit"
	statushttp "bastion/internal/transport/http/status"
)

func buildApp(cfg *bcfg.Config) (*App, error) {
	client, err := bridge.NewClient(cfg.Bridge)
	if err != nil {
		return nil, fmt.Errorf("building bridge client failed: %w", err)
	}
	adapter := bridge.NewAdapter(client, &cfg.Bridge)

	direct, err := binance.NewExecutor(&cfg.Binance)
	if err != nil {
		return nil, fmt.Errorf("building direct executor failed: %w", err)
	}

	bus := resilience.NewBus()

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening audit store failed: %w", err)
		}
		auditStore.Attach(bus)
	}

	if cfg.Notify.Telegram.Enabled {
		attachNotifier(bus, notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}

	recovery := resilience.NewRecoveryManager(cfg.Resilience.Recovery, bus)
	ledger := resilience.NewShadowLedger()

	orch, err := resilience.NewOrchestrator(resilience.OrchestratorParams{
		Config:     cfg.Resilience.Failover,
		Bridge:     adapter,
		Direct:     direct,
		Recovery:   recovery,
		Bus:        bus,
		Ledger:     ledger,
		InstanceID: adapter.InstanceID(),
		Factory:    adapter.ConnectionFactory(),
	})
	if err != nil {
		return nil, err
	}

	tracked, err := loadTracked(cfg.App.StrategiesPath)
	if err != nil {
		return nil, err
	}

	var checker *resilience.Checker
	var sync *resilience.Synchronizer
	if len(tracked) > 0 {
		checker, err = resilience.NewChecker(cfg.Resilience.Consistency, adapter, ledger, reportDiscrepancies(auditStore))
		if err != nil {
			return nil, err
		}
		sync, err = resilience.NewSynchronizer(cfg.Resilience.Sync, adapter, ledger, tracked, checker.Accept)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warnf("no tracked strategies configured, sync and consistency layers disabled")
	}

	statusSrv, err := statushttp.NewServer(statushttp.ServerConfig{
		Addr:         cfg.App.HTTPAddr,
		InstanceID:   adapter.InstanceID(),
		Recovery:     recovery,
		Orchestrator: orch,
		Sync:         sync,
		Checker:      checker,
		Audit:        auditStore,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		orch:     orch,
		recovery: recovery,
		sync:     sync,
		checker:  checker,
		audit:    auditStore,
		status:   statusSrv,
	}, nil
}

func loadTracked(path string) ([]loader.TrackedStrategy, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	tracked, err := loader.LoadStrategies(path)
	if err != nil {
		return nil, fmt.Errorf("loading tracked strategies failed: %w", err)
	}
	logger.Infof("tracking %d strategies for state sync", len(tracked))
	return tracked, nil
}

func reportDiscrepancies(store *audit.Store) func([]resilience.Discrepancy) {
	if store == nil {
		return nil
	}
	return func(ds []resilience.Discrepancy) {
		if err := store.RecordDiscrepancies(context.Background(), ds); err != nil {
			logger.Warnf("audit: persisting %d discrepancies failed: %v", len(ds), err)
		}
	}
}

// attachNotifier forwards the operator-relevant events to telegram.
func attachNotifier(bus *resilience.Bus, tg notifier.TextNotifier) {
	bus.Subscribe(func(evt resilience.Event) {
		var text string
		switch evt.Type {
		case resilience.EventFailover:
			text = fmt.Sprintf("⚠️ failover to direct path\ninstance: %s\nsignal: %s\nerror: %v", evt.InstanceID, evt.SignalID, evt.Err)
		case resilience.EventRecoveryFailed:
			text = fmt.Sprintf("🛑 bridge recovery exhausted after %d attempts\ninstance: %s\nerror: %v", evt.Attempt, evt.InstanceID, evt.Err)
		case resilience.EventRecoveryCompleted:
			text = fmt.Sprintf("✅ bridge recovered after %d attempts (%s)\ninstance: %s", evt.Attempt, evt.Elapsed.Truncate(time.Millisecond), evt.InstanceID)
		default:
			return
		}
		if err := tg.SendText(text); err != nil {
			logger.Warnf("telegram notify failed: %v", err)
		}
	})
}
