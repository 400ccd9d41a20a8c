package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Bridge.validate(); err != nil {
		return err
	}
	if err := c.Binance.validate(); err != nil {
		return err
	}
	if err := c.Resilience.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BridgeConfig) validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.APIURL) == "" {
		return fmt.Errorf("bridge.api_url cannot be empty when bridge is enabled")
	}
	if strings.TrimSpace(b.InstanceID) == "" {
		return fmt.Errorf("bridge.instance_id cannot be empty")
	}
	return nil
}

func (b *BinanceConfig) validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.APIKey) == "" || strings.TrimSpace(b.APISecret) == "" {
		return fmt.Errorf("binance.api_key and binance.api_secret are required when binance is enabled")
	}
	return nil
}

func (r *ResilienceConfig) validate() error {
	rec := r.Recovery
	if rec.InitialBackoffMs > rec.MaxBackoffMs {
		return fmt.Errorf("resilience.recovery.initial_backoff_ms must be <= max_backoff_ms")
	}
	if rec.BackoffMultiplier <= 1 {
		return fmt.Errorf("resilience.recovery.backoff_multiplier must be > 1")
	}
	if rec.MaxRetryAttempts <= 0 {
		return fmt.Errorf("resilience.recovery.max_retry_attempts must be > 0")
	}
	switch rec.ValidationPolicy {
	case "advisory", "strict":
	default:
		return fmt.Errorf("resilience.recovery.validation_policy must be advisory or strict, got %q", rec.ValidationPolicy)
	}
	if r.Sync.IntervalMs <= 0 {
		return fmt.Errorf("resilience.sync.interval_ms must be > 0")
	}
	if r.Consistency.IntervalMs < r.Sync.IntervalMs {
		return fmt.Errorf("resilience.consistency.interval_ms must be >= sync interval")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
