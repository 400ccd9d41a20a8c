package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bastion/internal/logger"
)

// IntervalRunner drives a task on a fixed interval. A tick that
// arrives while the previous pass is still running is skipped, not
// queued, so a slow pass never builds a backlog.
type IntervalRunner struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewIntervalRunner(name string, interval time.Duration) *IntervalRunner {
	return &IntervalRunner{
		Name:     name,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *IntervalRunner) Start(ctx context.Context, task func(context.Context)) {
	if r == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalRunner %s: task is nil, exit", r.Name)
		return
	}
	if r.Interval <= 0 {
		logger.Warnf("IntervalRunner %s: invalid interval=%s, exit", r.Name, r.Interval)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.loop(ctx, task)
}

func (r *IntervalRunner) loop(ctx context.Context, task func(context.Context)) {
	defer close(r.doneCh)
	logger.Infof("IntervalRunner %s: started interval=%s", r.Name, r.Interval)

	if r.RunImmediately {
		r.dispatch(ctx, task)
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("IntervalRunner %s: ctx done, exit", r.Name)
			return
		case <-r.stopCh:
			logger.Infof("IntervalRunner %s: stopped", r.Name)
			return
		case <-ticker.C:
			r.dispatch(ctx, task)
		}
	}
}

func (r *IntervalRunner) dispatch(ctx context.Context, task func(context.Context)) {
	if !r.running.CompareAndSwap(false, true) {
		logger.Debugf("IntervalRunner %s: previous pass still running, tick skipped", r.Name)
		return
	}
	go func() {
		defer r.running.Store(false)
		task(ctx)
	}()
}

// Stop terminates the loop. Safe to call more than once.
func (r *IntervalRunner) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
}
