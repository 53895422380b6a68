// Package cooldown tracks the per-symbol notify/debounce state the
// Signal Orchestrator consults on every PumpEvent (spec.md §4.3): the
// last notified peak, tier, and notify timestamp, plus the
// active_analysis flag that guarantees one actor per symbol.
package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one symbol's debounce bookkeeping.
type Entry struct {
	LastNotifiedPeak  float64
	LastNotifiedTier  string
	LastNotifyTime    time.Time
	ActiveAnalysis    bool
	LastNoSignalNotify time.Time // §4.3 ABANDONED: at most once per 30 min per symbol
}

// Store is the per-symbol guard table. Implementations must guarantee
// that Acquire is atomic: only one caller observes ok=true for a given
// symbol until Release.
type Store interface {
	Get(ctx context.Context, symbol string) (Entry, error)
	Set(ctx context.Context, symbol string, e Entry) error
	// Acquire marks active_analysis for symbol, returning ok=false if
	// another actor already holds it (spec.md §4.3 concurrency discipline).
	Acquire(ctx context.Context, symbol string) (ok bool, err error)
	// Release clears active_analysis, freeing the slot for a future
	// PumpEvent (§4.3 EMITTED → TRACKING, or any terminal state).
	Release(ctx context.Context, symbol string) error
}

// MemoryStore is an in-process Store, guarded by a symbol-keyed lock in
// the manner of internal/providers/guards/guard.go's per-provider guard
// state, for single-process deployments or tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty in-memory cooldown table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(ctx context.Context, symbol string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[symbol], nil
}

func (m *MemoryStore) Set(ctx context.Context, symbol string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[symbol] = e
	return nil
}

func (m *MemoryStore) Acquire(ctx context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[symbol]
	if e.ActiveAnalysis {
		return false, nil
	}
	e.ActiveAnalysis = true
	m.entries[symbol] = e
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[symbol]
	e.ActiveAnalysis = false
	m.entries[symbol] = e
	return nil
}

// RedisStore persists the cooldown table in Redis so multiple process
// instances (or a restart) share the same debounce state, following the
// TTL-keyed value pattern of
// internal/infrastructure/datafacade/cache/ttl_cache.go adapted onto a
// real Redis backend. active_analysis uses SetNX for the same
// at-most-one-holder guarantee the in-memory mutex gives MemoryStore.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. ttl bounds how long a stale
// entry survives a crashed actor; spec.md §4.3 states no explicit value,
// so this defaults to 1 hour, comfortably longer than the 15-minute
// ANALYZING bound.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func entryKey(symbol string) string  { return fmt.Sprintf("pumpshort:cooldown:%s", symbol) }
func activeKey(symbol string) string { return fmt.Sprintf("pumpshort:active:%s", symbol) }

func (r *RedisStore) Get(ctx context.Context, symbol string) (Entry, error) {
	raw, err := r.client.Get(ctx, entryKey(symbol)).Bytes()
	if err == redis.Nil {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cooldown get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("cooldown decode: %w", err)
	}
	return e, nil
}

func (r *RedisStore) Set(ctx context.Context, symbol string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cooldown encode: %w", err)
	}
	if err := r.client.Set(ctx, entryKey(symbol), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cooldown set: %w", err)
	}
	return nil
}

func (r *RedisStore) Acquire(ctx context.Context, symbol string) (bool, error) {
	ok, err := r.client.SetNX(ctx, activeKey(symbol), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown acquire: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, symbol string) error {
	if err := r.client.Del(ctx, activeKey(symbol)).Err(); err != nil {
		return fmt.Errorf("cooldown release: %w", err)
	}
	return nil
}

// Policy decides whether a PumpEvent should trigger a broadcaster notify
// (spec.md §4.3's debounce rules) — pure given the prior Entry and the
// new observation.
type Policy struct {
	RepeatThresholdPct float64
	CooldownMinutes    float64
}

// CooldownPolicyDefault matches spec.md §4.3's stated defaults.
func CooldownPolicyDefault() Policy {
	return Policy{RepeatThresholdPct: 10.0, CooldownMinutes: 0}
}

// CooldownPolicyLegacyA and CooldownPolicyLegacyB are alternate presets
// spec.md §9 notes the source project carried before settling on the
// default above; kept selectable per DESIGN.md's Open Question decision.
func CooldownPolicyLegacyA() Policy {
	return Policy{RepeatThresholdPct: 15.0, CooldownMinutes: 5}
}

func CooldownPolicyLegacyB() Policy {
	return Policy{RepeatThresholdPct: 5.0, CooldownMinutes: 2}
}

// ShouldNotify implements spec.md §4.3's IDLE→NOTIFIED debounce rules.
// isNewSymbol, tierRose are computed by the caller from its own symbol
// registry / tier ordering; this function only combines them with the
// peak-rise and time-cooldown checks.
func ShouldNotify(policy Policy, prev Entry, isNewSymbol, tierRose bool, currentPeak float64, now time.Time) bool {
	if isNewSymbol || tierRose {
		return true
	}

	peakRoseEnough := false
	if prev.LastNotifiedPeak > 0 {
		riseFromLastNotify := (currentPeak - prev.LastNotifiedPeak) / prev.LastNotifiedPeak * 100
		peakRoseEnough = riseFromLastNotify >= policy.RepeatThresholdPct
	}
	if !peakRoseEnough {
		return false
	}

	if policy.CooldownMinutes <= 0 {
		return true
	}
	return now.Sub(prev.LastNotifyTime).Minutes() >= policy.CooldownMinutes
}

// ShouldReplace implements spec.md §4.3's "any state → REPLACED" rule: a
// new higher peak at least 5% above the last notified peak restarts the
// pipeline regardless of current state.
func ShouldReplace(prev Entry, currentPeak float64) bool {
	if prev.LastNotifiedPeak <= 0 {
		return false
	}
	rise := (currentPeak - prev.LastNotifiedPeak) / prev.LastNotifiedPeak * 100
	return rise >= 5.0
}
