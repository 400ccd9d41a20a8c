package resilience

import (
	"sync"
	"time"

	"bastion/internal/logger"
)

// EventType enumerates the audit events the subsystem emits.
type EventType string

const (
	EventRecoveryStarted          EventType = "recovery-started"
	EventRecoverySuccessful       EventType = "recovery-successful"
	EventRecoveryFailed           EventType = "recovery-failed"
	EventRecoveryStopped          EventType = "recovery-stopped"
	EventPostValidationSuccessful EventType = "post-recovery-validation-successful"
	EventPostValidationFailed     EventType = "post-recovery-validation-failed"
	EventFailover                 EventType = "failover"
	EventRecoveryCompleted        EventType = "recovery-completed"
)

// Event is the typed payload delivered to subscribers. Fields beyond
// Type/Timestamp are populated per event kind.
type Event struct {
	Type       EventType
	InstanceID string
	StrategyID string
	SignalID   string
	Timestamp  time.Time
	Attempt    int
	Elapsed    time.Duration
	Err        error
	Detail     string
}

// Bus fans events out to registered subscribers. Delivery is
// synchronous and in registration order; a panicking subscriber is
// isolated so it cannot take down the publishing component.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(Event)) {
	if b == nil || fn == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, fn := range subs {
		b.deliver(fn, evt)
	}
}

func (b *Bus) deliver(fn func(Event), evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("event subscriber panic on %s: %v", evt.Type, r)
		}
	}()
	fn(evt)
}
