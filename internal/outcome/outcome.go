// Package outcome implements the §4.7 Outcome Tracker: a scheduled
// multi-horizon price sampler and an optional trailing take-profit
// follower, either of which may be the source of truth for how a
// tracked signal resolves. Both funnel into memory.Store.UpdateOutcome.
package outcome

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/pumpshort/internal/memory"
)

// Mode selects which mechanism is authoritative for a signal's
// final_result when both are running (spec.md §4.7, DESIGN.md open
// question decision).
type Mode string

const (
	ModeScheduled Mode = "scheduled"
	ModeTrailing  Mode = "trailing"
	ModeBoth      Mode = "both"
)

// Levels is the short-position level set the tracker classifies prices
// against. TP1 is nearest to entry (hit first as price falls), TP3 is
// the deepest target (hit last) — the reverse of internal/levels.Output's
// ascending-price ordering, so callers pass out.TPPrices[2], [1], [0].
type Levels struct {
	Entry float64
	TP1   float64
	TP2   float64
	TP3   float64
	SL    float64
}

// PriceReader fetches the current mark price for a symbol, used to take
// each scheduled sample and each trailing-follower tick.
type PriceReader interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Config tunes the tracker.
type Config struct {
	Mode     Mode
	Trailing TrailingConfig
}

// DefaultConfig matches the source system's default of running both
// mechanisms, with the scheduled sampler's horizons fixed by spec.md
// §4.7.1 and the trailing follower's defaults from §4.7.2.
func DefaultConfig() Config {
	return Config{Mode: ModeBoth, Trailing: DefaultTrailingConfig()}
}

// Tracker drives the scheduled sampler and/or trailing follower for each
// emitted signal and writes results back through memory.Store.
type Tracker struct {
	log    zerolog.Logger
	store  *memory.Store
	prices PriceReader
	cfg    Config

	mu        sync.Mutex
	finalized map[string]bool
}

// NewTracker wires a Tracker to a price source and the memory store.
func NewTracker(log zerolog.Logger, store *memory.Store, prices PriceReader, cfg Config) *Tracker {
	return &Tracker{
		log:       log.With().Str("component", "outcome_tracker").Logger(),
		store:     store,
		prices:    prices,
		cfg:       cfg,
		finalized: make(map[string]bool),
	}
}

// Track launches whichever mechanisms cfg.Mode selects for a single
// just-emitted signal. It blocks until every launched mechanism finishes;
// call it from its own goroutine per signal.
func (t *Tracker) Track(ctx context.Context, signalID, symbol string, levels Levels, emittedAt time.Time) {
	var wg sync.WaitGroup

	if t.cfg.Mode == ModeScheduled || t.cfg.Mode == ModeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.runScheduledSampler(ctx, signalID, symbol, levels, emittedAt)
		}()
	}

	if t.cfg.Mode == ModeTrailing || t.cfg.Mode == ModeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.runTrailingFollower(ctx, signalID, symbol, levels, emittedAt)
		}()
	}

	wg.Wait()
}

// tryFinalize applies a finalize-once guard so that, in Mode both, only
// the first mechanism to resolve a signal writes its final_result.
func (t *Tracker) tryFinalize(signalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized[signalID] {
		return false
	}
	t.finalized[signalID] = true
	return true
}

func (t *Tracker) updateOutcome(ctx context.Context, signalID string, upd memory.OutcomeUpdate) {
	if err := t.store.UpdateOutcome(ctx, signalID, upd); err != nil {
		t.log.Warn().Err(err).Str("signal_id", signalID).Msg("outcome update failed")
	}
}

func floatPtr(v float64) *float64       { return &v }
func boolPtr(v bool) *bool              { return &v }
func resultPtr(r memory.FinalResult) *memory.FinalResult { return &r }

func profitPct(entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	return (entry - price) / entry * 100
}

func drawdownPct(entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	return (price - entry) / entry * 100
}
