package config

import "time"

func (r RecoveryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

func (r RecoveryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

func (r RecoveryConfig) ConnectionTimeout() time.Duration {
	return time.Duration(r.ConnectionTimeoutMs) * time.Millisecond
}

func (r RecoveryConfig) Jitter() time.Duration {
	return time.Duration(r.JitterMs) * time.Millisecond
}

func (r RecoveryConfig) MaxPingAge() time.Duration {
	return time.Duration(r.MaxPingAgeMs) * time.Millisecond
}

func (f FailoverConfig) ExecutionTimeout() time.Duration {
	return time.Duration(f.ExecutionTimeoutMs) * time.Millisecond
}

func (f FailoverConfig) BreakerCooldown() time.Duration {
	return time.Duration(f.BreakerCooldownSec) * time.Second
}

func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

func (s SyncConfig) TimestampTolerance() time.Duration {
	return time.Duration(s.TimestampToleranceMs) * time.Millisecond
}

func (c ConsistencyConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}
