package gateway

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between calls to one provider. The
// quota is provider-wide, so one Pacer instance per provider is shared by
// every call site and every session. A caller arriving before the interval
// elapses blocks until it has passed; it is never rejected.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with the given minimum inter-call interval.
// A zero interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return NewPacerWithClock(interval, time.Now, sleepContext)
}

// NewPacerWithClock creates a pacer with an injected clock. Tests use this
// to drive pacing without real waiting.
func NewPacerWithClock(interval time.Duration, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	return &Pacer{
		interval: interval,
		now:      now,
		sleep:    sleep,
	}
}

// Wait blocks until the provider may be called again, then records the call
// time. The lock is held across the wait so concurrent callers serialize
// and the spacing holds between any two consecutive calls.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval > 0 && !p.last.IsZero() {
		if wait := p.interval - p.now().Sub(p.last); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	p.last = p.now()
	return nil
}

// Interval returns the configured minimum inter-call interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
