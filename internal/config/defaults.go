package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9982"
	defaultAppStrategies     = "configs/strategies.yaml"
	defaultBridgeAPI         = "http://bridge:8080/api/v1"
	defaultBridgeInstance    = "bridge-primary"
	defaultBridgeSettle      = "USDT"
	defaultBridgeTimeout     = 15
	defaultBinanceOrderTO    = 10
	defaultBinanceStake      = 100.0
	defaultBinanceLeverage   = 1
	defaultRecoveryInitialMs = 1000
	defaultRecoveryMaxMs     = 60000
	defaultRecoveryMult      = 2.0
	defaultRecoveryAttempts  = 10
	defaultRecoveryConnTOMs  = 5000
	defaultRecoveryJitterMs  = 500
	defaultRecoveryPingAgeMs = 30000
	defaultRecoveryPolicy    = "advisory"
	defaultFailoverExecTOMs  = 8000
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 120
	defaultSyncIntervalMs    = 30000
	defaultSyncPnLTol        = 0.01
	defaultSyncTradeTol      = 0
	defaultSyncTsTolMs       = 1000
	defaultSyncParamTol      = 0.001
	defaultConsistencyMs     = 300000
	defaultAuditDBPath       = "/data/db/bastion_audit.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Bridge.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.Resilience.applyDefaults(keys)
	c.Audit.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.strategies_path", &a.StrategiesPath, defaultAppStrategies),
	)
}

func (b *BridgeConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("bridge.enabled", &b.Enabled, true),
		stringFieldDefault("bridge.api_url", &b.APIURL, defaultBridgeAPI),
		stringFieldDefault("bridge.instance_id", &b.InstanceID, defaultBridgeInstance),
		stringFieldDefault("bridge.settle_currency", &b.SettleCurrency, defaultBridgeSettle),
		fieldDefault{
			key:   "bridge.timeout_seconds",
			need:  func() bool { return b.TimeoutSeconds <= 0 },
			apply: func() { b.TimeoutSeconds = defaultBridgeTimeout },
		},
	)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("binance.enabled", &b.Enabled, true),
		fieldDefault{
			key:   "binance.order_timeout_seconds",
			need:  func() bool { return b.OrderTimeoutSeconds <= 0 },
			apply: func() { b.OrderTimeoutSeconds = defaultBinanceOrderTO },
		},
		fieldDefault{
			key:   "binance.order_stake_usd",
			need:  func() bool { return b.OrderStakeUSD <= 0 },
			apply: func() { b.OrderStakeUSD = defaultBinanceStake },
		},
		intFieldDefault("binance.default_leverage", &b.DefaultLeverage, defaultBinanceLeverage),
	)
}

func (r *ResilienceConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	r.Recovery.applyDefaults(keys)
	r.Failover.applyDefaults(keys)
	r.Sync.applyDefaults(keys)
	r.Consistency.applyDefaults(keys)
}

func (r *RecoveryConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("resilience.recovery.initial_backoff_ms", &r.InitialBackoffMs, defaultRecoveryInitialMs),
		intFieldDefault("resilience.recovery.max_backoff_ms", &r.MaxBackoffMs, defaultRecoveryMaxMs),
		intFieldDefault("resilience.recovery.max_retry_attempts", &r.MaxRetryAttempts, defaultRecoveryAttempts),
		intFieldDefault("resilience.recovery.connection_timeout_ms", &r.ConnectionTimeoutMs, defaultRecoveryConnTOMs),
		intFieldDefault("resilience.recovery.max_ping_age_ms", &r.MaxPingAgeMs, defaultRecoveryPingAgeMs),
		stringFieldDefault("resilience.recovery.validation_policy", &r.ValidationPolicy, defaultRecoveryPolicy),
		fieldDefault{
			key:   "resilience.recovery.backoff_multiplier",
			need:  func() bool { return r.BackoffMultiplier <= 1 },
			apply: func() { r.BackoffMultiplier = defaultRecoveryMult },
		},
		fieldDefault{
			key:   "resilience.recovery.jitter_ms",
			need:  func() bool { return r.JitterMs < 0 },
			apply: func() { r.JitterMs = defaultRecoveryJitterMs },
		},
	)
	if !keys.isSet("resilience.recovery.jitter_ms") && r.JitterMs == 0 {
		r.JitterMs = defaultRecoveryJitterMs
	}
	r.ValidationPolicy = strings.ToLower(strings.TrimSpace(r.ValidationPolicy))
}

func (f *FailoverConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("resilience.failover.execution_timeout_ms", &f.ExecutionTimeoutMs, defaultFailoverExecTOMs),
		intFieldDefault("resilience.failover.breaker_threshold", &f.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("resilience.failover.breaker_cooldown_seconds", &f.BreakerCooldownSec, defaultBreakerCooldown),
	)
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("resilience.sync.interval_ms", &s.IntervalMs, defaultSyncIntervalMs),
		intFieldDefault("resilience.sync.timestamp_tolerance_ms", &s.TimestampToleranceMs, defaultSyncTsTolMs),
		fieldDefault{
			key:   "resilience.sync.pnl_tolerance",
			need:  func() bool { return s.PnLTolerance <= 0 },
			apply: func() { s.PnLTolerance = defaultSyncPnLTol },
		},
		fieldDefault{
			key:   "resilience.sync.parameter_tolerance",
			need:  func() bool { return s.ParameterTolerance <= 0 },
			apply: func() { s.ParameterTolerance = defaultSyncParamTol },
		},
	)
	if s.TradeCountTolerance < 0 {
		s.TradeCountTolerance = defaultSyncTradeTol
	}
}

func (c *ConsistencyConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("resilience.consistency.interval_ms", &c.IntervalMs, defaultConsistencyMs),
	)
}

func (a *AuditConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("audit.enabled", &a.Enabled, true),
		stringFieldDefault("audit.db_path", &a.DBPath, defaultAuditDBPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
