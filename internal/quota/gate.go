// Package quota implements sliding-window admission control for outbound
// provider calls.
package quota

import (
	"context"
	"sync"
	"time"

	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

// SlowWait is the admission wait above which Admit logs a quota entry.
const SlowWait = time.Second

// DefaultMargin is added to every computed wait so the oldest reservation
// has definitely left the window when the gate re-evaluates.
const DefaultMargin = 100 * time.Millisecond

// Gate admits at most maxCalls reservations in any rolling window of period.
// One Gate is shared by every call site that talks to the same provider.
type Gate struct {
	name     string
	maxCalls int
	period   time.Duration
	margin   time.Duration

	// admission is exclusive for the whole wait; buffered so a waiter can
	// give up on a context instead of blocking on a mutex.
	admit chan struct{}

	mu     sync.Mutex
	stamps []time.Time
}

// Option configures a Gate
type Option func(*Gate)

// WithMargin overrides the safety margin added to each wait.
func WithMargin(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.margin = d
		}
	}
}

// NewGate creates a gate allowing maxCalls per period.
func NewGate(name string, maxCalls int, period time.Duration, opts ...Option) *Gate {
	if maxCalls < 1 {
		maxCalls = 1
	}
	g := &Gate{
		name:     name,
		maxCalls: maxCalls,
		period:   period,
		margin:   DefaultMargin,
		admit:    make(chan struct{}, 1),
		stamps:   make([]time.Time, 0, maxCalls),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the provider name the gate was built for.
func (g *Gate) Name() string { return g.name }

// Budget returns how many calls the gate admits per window.
func (g *Gate) Budget() (int, time.Duration) { return g.maxCalls, g.period }

// Acquire blocks until one slot is reserved. It never fails; callers that
// need bounded latency use AcquireContext.
func (g *Gate) Acquire() {
	_ = g.AcquireContext(context.Background())
}

// AcquireContext reserves one slot, or returns a *types.TimeoutError without
// reserving if ctx ends first.
func (g *Gate) AcquireContext(ctx context.Context) error {
	start := time.Now()

	select {
	case g.admit <- struct{}{}:
	case <-ctx.Done():
		return g.timeout(start, ctx.Err())
	}
	defer func() { <-g.admit }()

	for {
		wait, ok := g.tryReserve()
		if ok {
			return nil
		}
		// The window keeps sliding while we sleep, so re-evaluate.
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return g.timeout(start, ctx.Err())
		}
	}
}

// tryReserve evicts expired stamps and either reserves now or reports how
// long to wait for the oldest stamp to leave the window.
func (g *Gate) tryReserve() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.evict(now)

	if len(g.stamps) < g.maxCalls {
		g.stamps = append(g.stamps, now)
		return 0, true
	}

	wait := g.stamps[0].Add(g.period).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait + g.margin, false
}

func (g *Gate) evict(now time.Time) {
	i := 0
	for i < len(g.stamps) && now.Sub(g.stamps[i]) > g.period {
		i++
	}
	if i > 0 {
		g.stamps = append(g.stamps[:0], g.stamps[i:]...)
	}
}

// Reservations returns how many reservations are inside the current window.
func (g *Gate) Reservations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(time.Now())
	return len(g.stamps)
}

func (g *Gate) timeout(start time.Time, err error) error {
	return &types.TimeoutError{Op: "quota " + g.name, Elapsed: time.Since(start), Err: err}
}

// Admit reserves a slot on gate and logs waits longer than SlowWait.
// A nil gate admits immediately.
func Admit(ctx context.Context, gate *Gate) error {
	if gate == nil {
		return nil
	}
	start := time.Now()
	if err := gate.AcquireContext(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited >= SlowWait {
		logger.Quota(ctx, gate.Name(), waited, "in_window", gate.Reservations())
	}
	return nil
}

// WithQuota reserves a slot on gate (when non-nil) and then runs fn.
func WithQuota(ctx context.Context, gate *Gate, fn func() error) error {
	if err := Admit(ctx, gate); err != nil {
		return err
	}
	return fn()
}
