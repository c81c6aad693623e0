package connectivity

import (
	"context"
	"time"

	"github.com/kshitijomkar/ledger/internal/logging"
)

// HealthChecker reports whether the remote authority is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Health calls f(ctx).
func (f HealthCheckFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// DefaultProbeTimeout bounds a single health check.
const DefaultProbeTimeout = 5 * time.Second

// Prober polls a HealthChecker and feeds the result to an Observer. It
// stands in for platform connectivity signals where none exist.
type Prober struct {
	checker  HealthChecker
	observer *Observer
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a Prober.
func NewProber(checker HealthChecker, observer *Observer, interval time.Duration) *Prober {
	return &Prober{
		checker:  checker,
		observer: observer,
		interval: interval,
		timeout:  DefaultProbeTimeout,
	}
}

// Probe checks reachability once and records the result.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(ctx)
	online := err == nil
	if err != nil && p.observer.IsOnline() {
		logging.Warn("Remote authority unreachable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	p.observer.SetOnline(online)
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
