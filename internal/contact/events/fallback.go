package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"identify/internal/contact/models"
	"identify/pkg/platform/circuit"
	"identify/pkg/platform/sentinel"
)

// Publisher delivers contact events.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// FallbackPublisher sends events to primary and falls back to a secondary
// publisher (normally LogPublisher) while primary keeps failing. Once the
// breaker opens, primary is only probed every probeInterval so requests stop
// paying the broker delivery timeout.
type FallbackPublisher struct {
	primary       Publisher
	fallback      Publisher
	breaker       *circuit.Breaker
	logger        *slog.Logger
	probeInterval time.Duration

	mu        sync.Mutex
	lastProbe time.Time
	now       func() time.Time
}

type FallbackOption func(*FallbackPublisher)

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(p *FallbackPublisher) {
		p.breaker = b
	}
}

func WithProbeInterval(d time.Duration) FallbackOption {
	return func(p *FallbackPublisher) {
		p.probeInterval = d
	}
}

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(p *FallbackPublisher) {
		p.logger = logger
	}
}

func NewFallbackPublisher(primary, fallback Publisher, opts ...FallbackOption) *FallbackPublisher {
	p := &FallbackPublisher{
		primary:       primary,
		fallback:      fallback,
		breaker:       circuit.New("event_publisher"),
		logger:        slog.Default(),
		probeInterval: 30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish returns the primary's error even when the fallback took the event,
// so callers still count the delivery as failed.
func (p *FallbackPublisher) Publish(ctx context.Context, event models.Event) error {
	if p.breaker.IsOpen() && !p.probeDue() {
		if err := p.fallback.Publish(ctx, event); err != nil {
			return fmt.Errorf("fallback publish: %w", err)
		}
		return fmt.Errorf("%s circuit open: %w", p.breaker.Name(), sentinel.ErrUnavailable)
	}

	err := p.primary.Publish(ctx, event)
	if err == nil {
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.logger.InfoContext(ctx, "event publisher recovered", "breaker", p.breaker.Name())
		}
		return nil
	}

	if _, change := p.breaker.RecordFailure(); change.Opened {
		p.logger.WarnContext(ctx, "event publisher degraded, using fallback",
			"breaker", p.breaker.Name(),
			"error", err,
		)
	}
	if ferr := p.fallback.Publish(ctx, event); ferr != nil {
		p.logger.ErrorContext(ctx, "fallback publish failed", "error", ferr)
	}
	return err
}

func (p *FallbackPublisher) probeDue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastProbe) < p.probeInterval {
		return false
	}
	p.lastProbe = now
	return true
}
