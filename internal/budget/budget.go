// Package budget enforces a daily request ceiling per exchange call class,
// the ambient complement to internal/ratelimit's per-second throttling:
// ratelimit smooths burst traffic, budget stops the adapter from quietly
// running up a provider's monthly API bill once the per-second shape looks
// fine but the day's total request count does not.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrBudgetExhausted is returned when a call class's daily budget is exceeded.
	ErrBudgetExhausted = errors.New("daily budget exhausted")
	// ErrBudgetWarning is returned when a call class is approaching its daily budget.
	ErrBudgetWarning = errors.New("budget warning threshold exceeded")
)

// ExhaustedError reports which call class ran out of budget and when it resets.
type ExhaustedError struct {
	CallClass string
	Used      int64
	Limit     int64
	ETA       time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: %d/%d requests used, resets at %s",
		e.CallClass, e.Used, e.Limit, e.ETA.Format("15:04 UTC"))
}

// WarningError reports that a call class crossed its warning threshold but
// has not yet exhausted its budget.
type WarningError struct {
	CallClass string
	Used      int64
	Limit     int64
	Threshold float64
}

func (e *WarningError) Error() string {
	utilization := float64(e.Used) / float64(e.Limit) * 100
	return fmt.Sprintf("budget warning for %s: %.1f%% used (%d/%d), threshold %.1f%%",
		e.CallClass, utilization, e.Used, e.Limit, e.Threshold*100)
}

// Tracker counts one call class's requests against a daily limit that
// resets at a fixed UTC hour.
type Tracker struct {
	limit         int64
	used          int64
	resetHour     int
	warnThreshold float64
	lastReset     time.Time
	mu            sync.RWMutex
}

// NewTracker creates a daily budget tracker resetting at resetHour UTC.
func NewTracker(limit int64, resetHour int, warnThreshold float64) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if warnThreshold <= 0 || warnThreshold > 1 {
		warnThreshold = 0.8
	}

	now := time.Now().UTC()
	return &Tracker{
		limit:         limit,
		resetHour:     resetHour,
		warnThreshold: warnThreshold,
		lastReset:     lastResetBefore(now, resetHour),
	}
}

func lastResetBefore(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

func (t *Tracker) nextReset() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastReset.Add(24 * time.Hour)
}

func (t *Tracker) resetIfDue() {
	now := time.Now().UTC()
	next := t.nextReset()
	if !now.After(next) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.lastReset.Add(24 * time.Hour)) {
		atomic.StoreInt64(&t.used, 0)
		t.lastReset = lastResetBefore(now, t.resetHour)
	}
}

// Allow reports whether another request currently fits within budget,
// without consuming a slot.
func (t *Tracker) Allow() error {
	t.resetIfDue()

	used := atomic.LoadInt64(&t.used)
	if used >= t.limit {
		return &ExhaustedError{Used: used, Limit: t.limit, ETA: t.nextReset()}
	}

	if rate := float64(used) / float64(t.limit); rate >= t.warnThreshold {
		return &WarningError{Used: used, Limit: t.limit, Threshold: t.warnThreshold}
	}
	return nil
}

// Consume records one request against the budget, returning an
// ExhaustedError (and refusing the increment) once the limit is hit.
func (t *Tracker) Consume() error {
	t.resetIfDue()

	used := atomic.AddInt64(&t.used, 1)
	if used > t.limit {
		atomic.AddInt64(&t.used, -1)
		return &ExhaustedError{Used: used - 1, Limit: t.limit, ETA: t.nextReset()}
	}

	if rate := float64(used) / float64(t.limit); rate >= t.warnThreshold {
		return &WarningError{Used: used, Limit: t.limit, Threshold: t.warnThreshold}
	}
	return nil
}

// Stats returns a point-in-time usage snapshot.
func (t *Tracker) Stats() Stats {
	t.resetIfDue()

	t.mu.RLock()
	defer t.mu.RUnlock()

	used := atomic.LoadInt64(&t.used)
	rate := float64(used) / float64(t.limit)

	return Stats{
		Limit:           t.limit,
		Used:            used,
		Remaining:       t.limit - used,
		UtilizationRate: rate,
		WarnThreshold:   t.warnThreshold,
		ResetHour:       t.resetHour,
		LastReset:       t.lastReset,
		NextReset:       t.lastReset.Add(24 * time.Hour),
		IsWarning:       rate >= t.warnThreshold,
		IsExhausted:     used >= t.limit,
	}
}

// Reset manually clears the counter, used by tests and by operator
// override commands.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	atomic.StoreInt64(&t.used, 0)
	t.lastReset = time.Now().UTC()
}

// SetLimit changes the daily request limit in place.
func (t *Tracker) SetLimit(limit int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = limit
}

// SetWarnThreshold changes the warning threshold in place.
func (t *Tracker) SetWarnThreshold(threshold float64) {
	if threshold <= 0 || threshold > 1 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnThreshold = threshold
}

// Stats is a snapshot of one call class's budget usage, JSON-tagged so
// internal/httpserver can expose it on /stats.
type Stats struct {
	Limit           int64     `json:"limit"`
	Used            int64     `json:"used"`
	Remaining       int64     `json:"remaining"`
	UtilizationRate float64   `json:"utilization_rate"`
	WarnThreshold   float64   `json:"warn_threshold"`
	ResetHour       int       `json:"reset_hour"`
	LastReset       time.Time `json:"last_reset"`
	NextReset       time.Time `json:"next_reset"`
	IsWarning       bool      `json:"is_warning"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// TimeToReset is how long until this snapshot's NextReset.
func (s *Stats) TimeToReset() time.Duration {
	return time.Until(s.NextReset)
}

// Manager fans a single daily-budget check out across every exchange call
// class (ticker, klines, orderbook, funding, open_interest — the same
// classes internal/circuitbreaker registers breakers for).
type Manager struct {
	trackers map[string]*Tracker
	mu       sync.RWMutex
}

// NewManager returns a Manager with no call classes registered yet.
func NewManager() *Manager {
	return &Manager{trackers: make(map[string]*Tracker)}
}

// AddCallClass registers a daily budget for a call class. Classes left
// unregistered are unbounded (Allow/Consume are no-ops for them), so
// operators can opt individual call classes into budget enforcement.
func (m *Manager) AddCallClass(callClass string, limit int64, resetHour int, warnThreshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[callClass] = NewTracker(limit, resetHour, warnThreshold)
}

// Tracker returns the budget tracker for a call class, if registered.
func (m *Manager) Tracker(callClass string) (*Tracker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trackers[callClass]
	return t, ok
}

// Allow checks a call class's budget without consuming a slot.
func (m *Manager) Allow(callClass string) error {
	t, ok := m.Tracker(callClass)
	if !ok {
		return nil
	}
	return t.Allow()
}

// Consume records one request against a call class's budget. Unregistered
// classes are always allowed, so a Manager with nothing registered is a
// complete no-op guard.
func (m *Manager) Consume(callClass string) error {
	t, ok := m.Tracker(callClass)
	if !ok {
		return nil
	}
	return t.Consume()
}

// Stats returns a usage snapshot for every registered call class.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.trackers))
	for class, t := range m.trackers {
		out[class] = t.Stats()
	}
	return out
}

// Warnings lists call classes currently at or above their warn threshold.
func (m *Manager) Warnings() []string {
	var warnings []string
	for class, stat := range m.Stats() {
		if stat.IsWarning {
			warnings = append(warnings, fmt.Sprintf("%s (%.1f%% used)", class, stat.UtilizationRate*100))
		}
	}
	return warnings
}

// Exhausted lists call classes that have hit their daily limit.
func (m *Manager) Exhausted() []string {
	var exhausted []string
	for class, stat := range m.Stats() {
		if stat.IsExhausted {
			exhausted = append(exhausted, fmt.Sprintf("%s (%d/%d used, resets in %v)",
				class, stat.Used, stat.Limit, stat.TimeToReset().Round(time.Minute)))
		}
	}
	return exhausted
}

// Reset clears every registered call class's counter.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackers {
		t.Reset()
	}
}
