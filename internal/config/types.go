package config

import "strings"

// Config is the main configuration carrier for bastion.
type Config struct {
	App        AppConfig        `toml:"app"`
	Bridge     BridgeConfig     `toml:"bridge"`
	Binance    BinanceConfig    `toml:"binance"`
	Resilience ResilienceConfig `toml:"resilience"`
	Notify     NotifyConfig     `toml:"notify"`
	Audit      AuditConfig      `toml:"audit"`
}

type AppConfig struct {
	Env            string `toml:"env"`
	LogLevel       string `toml:"log_level"`
	HTTPAddr       string `toml:"http_addr"`
	LogPath        string `toml:"log_path"`
	StrategiesPath string `toml:"strategies_path"`
}

// BridgeConfig describes how to reach the external execution engine.
type BridgeConfig struct {
	Enabled            bool   `toml:"enabled"`
	APIURL             string `toml:"api_url"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	APIToken           string `toml:"api_token"`
	InstanceID         string `toml:"instance_id"`
	SettleCurrency     string `toml:"settle_currency"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// BinanceConfig configures the direct execution path.
type BinanceConfig struct {
	Enabled             bool    `toml:"enabled"`
	APIKey              string  `toml:"api_key"`
	APISecret           string  `toml:"api_secret"`
	Testnet             bool    `toml:"testnet"`
	OrderTimeoutSeconds int     `toml:"order_timeout_seconds"`
	OrderStakeUSD       float64 `toml:"order_stake_usd"`
	DefaultLeverage     int     `toml:"default_leverage"`
}

// ResilienceConfig groups the recovery/failover/sync/consistency knobs.
type ResilienceConfig struct {
	Recovery    RecoveryConfig    `toml:"recovery"`
	Failover    FailoverConfig    `toml:"failover"`
	Sync        SyncConfig        `toml:"sync"`
	Consistency ConsistencyConfig `toml:"consistency"`
}

type RecoveryConfig struct {
	InitialBackoffMs    int      `toml:"initial_backoff_ms"`
	MaxBackoffMs        int      `toml:"max_backoff_ms"`
	BackoffMultiplier   float64  `toml:"backoff_multiplier"`
	MaxRetryAttempts    int      `toml:"max_retry_attempts"`
	ConnectionTimeoutMs int      `toml:"connection_timeout_ms"`
	JitterMs            int      `toml:"jitter_ms"`
	MaxPingAgeMs        int      `toml:"max_ping_age_ms"`
	SupportedVersions   []string `toml:"supported_versions"`
	ValidationPolicy    string   `toml:"validation_policy"` // "advisory" | "strict"
}

type FailoverConfig struct {
	ExecutionTimeoutMs int `toml:"execution_timeout_ms"`
	BreakerThreshold   int `toml:"breaker_threshold"`
	BreakerCooldownSec int `toml:"breaker_cooldown_seconds"`
}

type SyncConfig struct {
	IntervalMs           int     `toml:"interval_ms"`
	PnLTolerance         float64 `toml:"pnl_tolerance"`
	TradeCountTolerance  int     `toml:"trade_count_tolerance"`
	TimestampToleranceMs int     `toml:"timestamp_tolerance_ms"`
	ParameterTolerance   float64 `toml:"parameter_tolerance"`
}

type ConsistencyConfig struct {
	IntervalMs  int  `toml:"interval_ms"`
	AutoCorrect bool `toml:"auto_correct"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// keySet tracks field paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
