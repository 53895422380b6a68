// Package circuitbreaker wraps gobreaker.CircuitBreaker per upstream call
// class (ticker, klines, orderbook, funding, open interest), adapted from
// the teacher's per-exchange-provider manager to per-endpoint-class
// breakers on a single exchange adapter (spec.md §6).
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Manager owns one breaker per call class, trips on error-rate or
// consecutive-failure thresholds, and exposes a fallback chain for call
// classes that can degrade to a cached or stale response instead of
// failing outright.
type Manager struct {
	log       zerolog.Logger
	breakers  map[string]*gobreaker.CircuitBreaker
	configs   map[string]*Config
	fallbacks map[string][]string
	mu        sync.RWMutex
}

// Config tunes one call class's breaker.
type Config struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ErrorRateThreshold  float64 // percent, e.g. 30.0
	ConsecutiveFailures uint32
	MinRequests         uint32 // requests required before error rate is evaluated
}

// Status is a point-in-time snapshot of one call class's breaker.
type Status struct {
	Name                string
	State               string
	Counts              gobreaker.Counts
	ErrorRate           float64
	ConsecutiveFailures uint32
	NextReset           time.Time
	FallbackChain       []string
}

// NewManager returns an empty manager; call InitializeClass per call
// class before Execute.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:       log,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		configs:   make(map[string]*Config),
		fallbacks: make(map[string][]string),
	}
}

// InitializeClass registers a breaker for callClass with an optional
// fallback chain of other call classes to try while this one is open.
func (m *Manager) InitializeClass(callClass string, cfg *Config, fallbackChain []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[callClass] = cfg
	m.fallbacks[callClass] = fallbackChain

	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   m.tripCondition(cfg),
		OnStateChange: m.stateChangeHandler(callClass),
	}

	m.breakers[callClass] = gobreaker.NewCircuitBreaker(settings)
}

// Execute runs fn through callClass's breaker, falling back through the
// registered chain if the breaker is open.
func (m *Manager) Execute(callClass string, fn func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	breaker, ok := m.breakers[callClass]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no circuit breaker registered for call class %s", callClass)
	}

	result, err := breaker.Execute(fn)
	if err != nil && m.isOpen(callClass) {
		return m.executeFallbackChain(callClass, fn)
	}
	return result, err
}

// Status returns a snapshot of callClass's breaker, or nil if unregistered.
func (m *Manager) Status(callClass string) *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breaker, ok := m.breakers[callClass]
	if !ok {
		return nil
	}
	cfg := m.configs[callClass]
	counts := breaker.Counts()

	var errorRate float64
	if counts.Requests > 0 {
		errorRate = float64(counts.TotalFailures) / float64(counts.Requests) * 100
	}

	var nextReset time.Time
	if breaker.State() == gobreaker.StateOpen {
		nextReset = time.Now().Add(cfg.Timeout)
	}

	return &Status{
		Name:                cfg.Name,
		State:               breaker.State().String(),
		Counts:              counts,
		ErrorRate:           errorRate,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		NextReset:           nextReset,
		FallbackChain:       m.fallbacks[callClass],
	}
}

func (m *Manager) tripCondition(cfg *Config) func(counts gobreaker.Counts) bool {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	return func(counts gobreaker.Counts) bool {
		if counts.Requests >= minRequests {
			errorRate := float64(counts.TotalFailures) / float64(counts.Requests) * 100
			if errorRate >= cfg.ErrorRateThreshold {
				return true
			}
		}
		return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
	}
}

func (m *Manager) stateChangeHandler(callClass string) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := m.log.Info()
		if to == gobreaker.StateOpen {
			event = m.log.Warn()
		}
		event.Str("call_class", callClass).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	}
}

func (m *Manager) isOpen(callClass string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	breaker, ok := m.breakers[callClass]
	return ok && breaker.State() == gobreaker.StateOpen
}

func (m *Manager) executeFallbackChain(callClass string, fn func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	chain := m.fallbacks[callClass]
	m.mu.RUnlock()

	for _, fallback := range chain {
		m.mu.RLock()
		breaker, ok := m.breakers[fallback]
		m.mu.RUnlock()
		if !ok || breaker.State() == gobreaker.StateOpen {
			continue
		}
		result, err := breaker.Execute(fn)
		if err == nil {
			m.log.Info().Str("call_class", callClass).Str("fallback", fallback).Msg("fallback call class succeeded")
			return result, nil
		}
	}
	return nil, fmt.Errorf("all fallback call classes exhausted for %s", callClass)
}

// DefaultConfigs returns breaker tuning for the five Kraken call classes
// the exchange adapter issues (spec.md §6).
func DefaultConfigs() map[string]*Config {
	return map[string]*Config{
		"ticker": {
			Name:                "kraken-ticker",
			MaxRequests:         5,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ErrorRateThreshold:  30.0,
			ConsecutiveFailures: 3,
		},
		"klines": {
			Name:                "kraken-klines",
			MaxRequests:         5,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ErrorRateThreshold:  30.0,
			ConsecutiveFailures: 3,
		},
		"orderbook": {
			Name:                "kraken-orderbook",
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             45 * time.Second,
			ErrorRateThreshold:  25.0,
			ConsecutiveFailures: 2,
		},
		"funding": {
			Name:                "kraken-funding",
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             60 * time.Second,
			ErrorRateThreshold:  25.0,
			ConsecutiveFailures: 2,
		},
		"open_interest": {
			Name:                "kraken-open-interest",
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             60 * time.Second,
			ErrorRateThreshold:  25.0,
			ConsecutiveFailures: 2,
		},
	}
}
