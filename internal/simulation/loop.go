package simulation

import (
	"context"
	"sync"
	"time"
)

// StepFunc advances the game by exactly one fixed timestep.
type StepFunc func(step time.Duration)

// Loop drives the authoritative tick at a fixed timestep. Wall-clock time is
// folded into an accumulator, so a slow tick is repaid with catch-up steps on
// the next wakeup and simulated time never drifts from real time.
type Loop struct {
	step     time.Duration
	stepFunc StepFunc
	monitor  *TickMonitor
	ticker   *time.Ticker
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewLoop configures a loop that advances step by step at the given interval.
// The monitor is optional; when present every step's duration is recorded.
func NewLoop(step time.Duration, fn StepFunc, monitor *TickMonitor) *Loop {
	if step <= 0 {
		step = time.Second / 30
	}
	if fn == nil {
		fn = func(time.Duration) {}
	}
	return &Loop{
		step:     step,
		stepFunc: fn,
		monitor:  monitor,
		quit:     make(chan struct{}),
	}
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.stepFunc == nil {
		return
	}

	l.ticker = time.NewTicker(l.step)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.quit:
				return
			case now := <-l.ticker.C:
				//1.- Fold elapsed wall time into the accumulator.
				accumulator += now.Sub(last)
				last = now
				//2.- Run fixed steps until simulated time has caught up.
				for accumulator >= l.step {
					began := time.Now()
					l.stepFunc(l.step)
					l.monitor.Observe(time.Since(began))
					accumulator -= l.step
				}
			}
		}
	}()
}

// Stop ends the loop and waits for the tick goroutine to exit. It does not
// require the Start context to be cancelled, and calling it again is a no-op.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.quitOnce.Do(func() { close(l.quit) })
	if l.ticker != nil {
		l.ticker.Stop()
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
