// Package ratelimit throttles outbound exchange requests per call class,
// the per-second complement to internal/budget's daily ceiling and
// internal/circuitbreaker's failure isolation. All three key off the same
// call classes (ticker, klines, orderbook, funding, open_interest) and all
// three must clear before kraken.Client sends a request (spec.md §6).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter token-bucket throttles a single call class.
type Limiter struct {
	mu    sync.RWMutex
	inner *rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst capacity.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a request may proceed right now, without blocking.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner.Allow()
}

// Wait blocks until a request is allowed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	inner := l.inner
	l.mu.RUnlock()
	return inner.Wait(ctx)
}

// SetRPS adjusts the limiter's steady-state rate in place.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.SetLimit(rate.Limit(rps))
}

// SetBurst adjusts the limiter's burst capacity in place.
func (l *Limiter) SetBurst(burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.SetBurst(burst)
}

// Stats reports the limiter's current throttling state, for the ops
// stats endpoint.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	reservation := l.inner.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	return LimiterStats{
		RPS:             float64(l.inner.Limit()),
		Burst:           l.inner.Burst(),
		TokensAvailable: l.inner.Tokens(),
		NextAllowedAt:   time.Now().Add(delay),
		Delay:           delay,
	}
}

// LimiterStats is a point-in-time snapshot of one call class's throttling.
type LimiterStats struct {
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	NextAllowedAt   time.Time     `json:"next_allowed_at"`
	Delay           time.Duration `json:"delay"`
}

// IsThrottled reports whether the snapshot was taken while the limiter
// was making requests wait.
func (s LimiterStats) IsThrottled() bool {
	return s.Delay > 0
}

// Manager holds one Limiter per exchange call class, so a slower endpoint
// (e.g. orderbook) can run at a tighter rate than the rest without
// throttling unrelated call classes.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewManager returns an empty call-class manager; call AddCallClass for
// each class before Wait/Allow is used against it.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*Limiter)}
}

// AddCallClass registers a limiter for callClass, replacing any existing
// one.
func (m *Manager) AddCallClass(callClass string, rps float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[callClass] = NewLimiter(rps, burst)
}

// Limiter returns the registered limiter for callClass, if any.
func (m *Manager) Limiter(callClass string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[callClass]
	return l, ok
}

// Allow reports whether callClass may proceed right now. An unregistered
// call class is always allowed.
func (m *Manager) Allow(callClass string) bool {
	limiter, ok := m.Limiter(callClass)
	if !ok {
		return true
	}
	return limiter.Allow()
}

// Wait blocks until callClass is allowed to proceed or ctx is cancelled.
// An unregistered call class returns immediately.
func (m *Manager) Wait(ctx context.Context, callClass string) error {
	limiter, ok := m.Limiter(callClass)
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Stats returns a throttling snapshot for every registered call class.
func (m *Manager) Stats() map[string]LimiterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]LimiterStats, len(m.limiters))
	for class, l := range m.limiters {
		out[class] = l.Stats()
	}
	return out
}
