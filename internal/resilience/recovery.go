package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	bcfg "bastion/internal/config"
	"bastion/internal/gateway/exchange"
	"bastion/internal/logger"
)

// RecoveryManager owns the reconnection state machine for logical
// bridge connections. One recovery episode runs per instance id at a
// time; a second StartRecovery for the same id is a no-op.
type RecoveryManager struct {
	cfg bcfg.RecoveryConfig
	bus *Bus

	mu       sync.Mutex
	episodes map[string]*recoveryEpisode
	states   map[string]ConnectionState
	closed   bool

	totalAttempts     int64
	successes         int64
	failures          int64
	totalRecoveryTime time.Duration
	currentBackoff    time.Duration
}

// recoveryEpisode is the per-instance arena owning the episode's
// cancellation handle. Destroyed on success, exhaustion or stop.
type recoveryEpisode struct {
	instanceID  string
	startedAt   time.Time
	attempts    int
	maxAttempts int
	backoff     time.Duration
	lastErr     error

	cancelOnce sync.Once
	cancel     chan struct{}
}

func (ep *recoveryEpisode) stop() {
	ep.cancelOnce.Do(func() { close(ep.cancel) })
}

func (ep *recoveryEpisode) stopped() bool {
	select {
	case <-ep.cancel:
		return true
	default:
		return false
	}
}

func NewRecoveryManager(cfg bcfg.RecoveryConfig, bus *Bus) *RecoveryManager {
	return &RecoveryManager{
		cfg:            cfg,
		bus:            bus,
		episodes:       make(map[string]*recoveryEpisode),
		states:         make(map[string]ConnectionState),
		currentBackoff: cfg.InitialBackoff(),
	}
}

// StartRecovery begins a backoff-driven recovery for the given
// instance. Returns false when a recovery is already running for that
// id or the manager has been cleaned up.
func (m *RecoveryManager) StartRecovery(instanceID string, factory exchange.ConnectionFactory) bool {
	if m == nil || factory == nil {
		return false
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if _, running := m.episodes[instanceID]; running {
		m.mu.Unlock()
		return false
	}
	ep := &recoveryEpisode{
		instanceID:  instanceID,
		startedAt:   time.Now(),
		maxAttempts: m.cfg.MaxRetryAttempts,
		backoff:     m.cfg.InitialBackoff(),
		cancel:      make(chan struct{}),
	}
	m.episodes[instanceID] = ep
	m.states[instanceID] = ConnStateRecovering
	m.mu.Unlock()

	m.publish(Event{Type: EventRecoveryStarted, InstanceID: instanceID})
	logger.Infof("recovery started instance=%s max_attempts=%d", instanceID, ep.maxAttempts)

	go m.run(ep, factory)
	return true
}

func (m *RecoveryManager) run(ep *recoveryEpisode, factory exchange.ConnectionFactory) {
	backoff := m.cfg.InitialBackoff()
	for {
		m.mu.Lock()
		ep.attempts++
		attempt := ep.attempts
		m.totalAttempts++
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectionTimeout())
		desc, err := factory(ctx)
		cancel()

		// A stopped episode discards whatever the factory returned.
		if ep.stopped() {
			return
		}

		if err == nil && desc == nil {
			err = fmt.Errorf("connection factory returned no descriptor")
		}
		if err == nil {
			if detail, ok := m.validateConnection(desc); ok {
				m.publish(Event{Type: EventPostValidationSuccessful, InstanceID: ep.instanceID, Attempt: attempt})
				m.completeSuccess(ep, attempt)
				return
			} else {
				m.publish(Event{Type: EventPostValidationFailed, InstanceID: ep.instanceID, Attempt: attempt, Detail: detail})
				if m.cfg.ValidationPolicy != "strict" {
					// Advisory policy: the connection is treated as
					// usable even when slightly unhealthy.
					m.completeSuccess(ep, attempt)
					return
				}
				err = fmt.Errorf("post-recovery validation failed: %s", detail)
			}
		}

		m.mu.Lock()
		ep.lastErr = err
		exhausted := attempt >= ep.maxAttempts
		m.mu.Unlock()
		logger.Warnf("recovery attempt %d/%d failed instance=%s: %v", attempt, ep.maxAttempts, ep.instanceID, err)

		if exhausted {
			m.completeFailure(ep, err)
			return
		}

		delay := backoff + m.jitter()
		m.mu.Lock()
		ep.backoff = delay
		m.currentBackoff = delay
		m.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ep.cancel:
			timer.Stop()
			return
		case <-timer.C:
		}
		// The select picks at random when the timer fired around the
		// same time the episode was stopped.
		if ep.stopped() {
			return
		}

		backoff = time.Duration(float64(backoff) * m.cfg.BackoffMultiplier)
		if max := m.cfg.MaxBackoff(); backoff > max {
			backoff = max
		}
	}
}

// validateConnection runs the advisory post-recovery health check:
// reported status, heartbeat freshness and protocol version.
func (m *RecoveryManager) validateConnection(desc *exchange.ConnectionDescriptor) (string, bool) {
	if desc.Status != exchange.ConnStatusConnected {
		return fmt.Sprintf("status=%s", desc.Status), false
	}
	if maxAge := m.cfg.MaxPingAge(); maxAge > 0 && !desc.LastHeartbeat.IsZero() {
		if age := time.Since(desc.LastHeartbeat); age > maxAge {
			return fmt.Sprintf("heartbeat age %s exceeds %s", age.Truncate(time.Millisecond), maxAge), false
		}
	}
	if len(m.cfg.SupportedVersions) > 0 {
		supported := false
		for _, v := range m.cfg.SupportedVersions {
			if strings.EqualFold(strings.TrimSpace(v), desc.APIVersion) {
				supported = true
				break
			}
		}
		if !supported {
			return fmt.Sprintf("unsupported api version %q", desc.APIVersion), false
		}
	}
	return "", true
}

func (m *RecoveryManager) completeSuccess(ep *recoveryEpisode, attempt int) {
	elapsed := time.Since(ep.startedAt)

	m.mu.Lock()
	if m.episodes[ep.instanceID] != ep {
		m.mu.Unlock()
		return
	}
	delete(m.episodes, ep.instanceID)
	m.states[ep.instanceID] = ConnStateConnected
	m.successes++
	m.totalRecoveryTime += elapsed
	m.currentBackoff = m.cfg.InitialBackoff()
	m.mu.Unlock()

	logger.Infof("recovery successful instance=%s attempts=%d elapsed=%s", ep.instanceID, attempt, elapsed.Truncate(time.Millisecond))
	m.publish(Event{Type: EventRecoverySuccessful, InstanceID: ep.instanceID, Attempt: attempt, Elapsed: elapsed})
}

func (m *RecoveryManager) completeFailure(ep *recoveryEpisode, err error) {
	m.mu.Lock()
	if m.episodes[ep.instanceID] != ep {
		m.mu.Unlock()
		return
	}
	delete(m.episodes, ep.instanceID)
	m.states[ep.instanceID] = ConnStateFailed
	m.failures++
	m.mu.Unlock()

	// Fail-stop: a failed connection stays failed until an external
	// StartRecovery call restarts it.
	logger.Errorf("recovery exhausted instance=%s attempts=%d: %v", ep.instanceID, ep.attempts, err)
	m.publish(Event{Type: EventRecoveryFailed, InstanceID: ep.instanceID, Attempt: ep.attempts, Err: err})
}

// StopRecovery cancels the pending episode for an instance, if any.
func (m *RecoveryManager) StopRecovery(instanceID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	ep, ok := m.episodes[instanceID]
	attempts := 0
	if ok {
		delete(m.episodes, instanceID)
		m.states[instanceID] = ConnStateStopped
		attempts = ep.attempts
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	ep.stop()
	m.publish(Event{Type: EventRecoveryStopped, InstanceID: instanceID, Attempt: attempts})
}

// GetRecoveryStatus reports the state of one instance. Pure read.
func (m *RecoveryManager) GetRecoveryStatus(instanceID string) RecoveryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := RecoveryStatus{
		InstanceID: instanceID,
		State:      ConnStateUnknown,
	}
	if st, ok := m.states[instanceID]; ok {
		status.State = st
	}
	if ep, ok := m.episodes[instanceID]; ok {
		status.Attempts = ep.attempts
		status.MaxAttempts = ep.maxAttempts
		status.CurrentBackoff = ep.backoff
		status.StartedAt = ep.startedAt
		if ep.lastErr != nil {
			status.LastError = ep.lastErr.Error()
		}
	}
	return status
}

// Recovering reports whether an episode is in flight for the instance.
func (m *RecoveryManager) Recovering(instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.episodes[instanceID]
	return ok
}

// Metrics returns a snapshot copy of the counters.
func (m *RecoveryManager) Metrics() RecoveryMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	avg := time.Duration(0)
	if m.successes > 0 {
		avg = m.totalRecoveryTime / time.Duration(m.successes)
	}
	return RecoveryMetrics{
		TotalAttempts:        m.totalAttempts,
		SuccessfulRecoveries: m.successes,
		FailedRecoveries:     m.failures,
		AverageRecoveryTime:  avg,
		CurrentBackoffDelay:  m.currentBackoff,
	}
}

// Cleanup cancels every episode and timer. Safe to call repeatedly;
// intended for process shutdown.
func (m *RecoveryManager) Cleanup() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.closed = true
	eps := make([]*recoveryEpisode, 0, len(m.episodes))
	for id, ep := range m.episodes {
		eps = append(eps, ep)
		delete(m.episodes, id)
		m.states[id] = ConnStateStopped
	}
	m.mu.Unlock()
	for _, ep := range eps {
		ep.stop()
	}
}

func (m *RecoveryManager) jitter() time.Duration {
	bound := m.cfg.Jitter()
	if bound <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(bound)))
}

func (m *RecoveryManager) publish(evt Event) {
	if m.bus != nil {
		m.bus.Publish(evt)
	}
}
