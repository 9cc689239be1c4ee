// Package locate acquires user positions with a bounded wait and a short-lived
// cache of recent fixes.
package locate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultMaxAge  = 5 * time.Minute
)

type fix struct {
	loc domain.UserLocation
	at  time.Time
}

// Provider wraps a domain.UserLocator. A lookup that takes longer than the
// timeout fails with reason "timeout", and a fix younger than maxAge is served
// from memory.
type Provider struct {
	locator domain.UserLocator
	timeout time.Duration
	maxAge  time.Duration
	clock   clockwork.Clock

	mu    sync.Mutex
	fixes map[string]fix
}

// NewProvider creates a Provider. Non-positive durations use the defaults.
func NewProvider(locator domain.UserLocator, timeout, maxAge time.Duration, clock clockwork.Clock) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{
		locator: locator,
		timeout: timeout,
		maxAge:  maxAge,
		clock:   clock,
		fixes:   make(map[string]fix),
	}
}

type result struct {
	loc domain.UserLocation
	err error
}

// Locate returns the position for key. Every failure is a *domain.LocationError.
func (p *Provider) Locate(ctx context.Context, key string) (domain.UserLocation, error) {
	if loc, ok := p.cached(key); ok {
		return loc, nil
	}

	ctx, cancel := clockwork.WithTimeout(ctx, p.clock, p.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		loc, err := p.locator.Locate(ctx, key)
		done <- result{loc: loc, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		return domain.UserLocation{}, asLocationError(res.err)
	}

	p.mu.Lock()
	p.fixes[key] = fix{loc: res.loc, at: p.clock.Now()}
	p.mu.Unlock()
	return res.loc, nil
}

func (p *Provider) cached(key string) (domain.UserLocation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.fixes[key]
	if !ok {
		return domain.UserLocation{}, false
	}
	if p.clock.Since(f.at) >= p.maxAge {
		delete(p.fixes, key)
		return domain.UserLocation{}, false
	}
	return f.loc, true
}

func asLocationError(err error) error {
	var locErr *domain.LocationError
	switch {
	case errors.As(err, &locErr):
		return locErr
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.LocationError{Reason: "timeout"}
	case errors.Is(err, context.Canceled):
		return &domain.LocationError{Reason: "cancelled", Err: err}
	default:
		return &domain.LocationError{Reason: "position unavailable", Err: err}
	}
}
