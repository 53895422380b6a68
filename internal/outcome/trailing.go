package outcome

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/pumpshort/internal/memory"
)

// TrailingState mirrors the state-enum idiom used by
// internal/net/circuit's Breaker: a small iota enum guarded by a mutex.
type TrailingState int

const (
	TrailingInactive TrailingState = iota
	TrailingActive
	TrailingClosed
)

// TrailingConfig tunes the §4.7.2 trailing take-profit follower.
type TrailingConfig struct {
	ActivationPct      float64 // profit pct before the follower arms, default 2
	TrailDistancePct    float64 // distance kept above the running low, default 1
	MaxTrackingMinutes float64 // hard stop regardless of state, default 240
}

// DefaultTrailingConfig applies spec.md §4.7.2's stated defaults.
// trail_distance_pct has no default in spec.md; 1.0 is this
// implementation's choice (DESIGN.md).
func DefaultTrailingConfig() TrailingConfig {
	return TrailingConfig{ActivationPct: 2.0, TrailDistancePct: 1.0, MaxTrackingMinutes: 240}
}

// TrailingEvent reports a terminal transition from Follower.Update.
type TrailingEvent struct {
	Closed bool
	Reason memory.FinalResult
	Price  float64
}

// Follower is one position's trailing take-profit state machine
// (spec.md §4.7.2). Update is pure given (now, price); it takes no
// internal clock reads.
type Follower struct {
	mu sync.Mutex

	cfg       TrailingConfig
	entry, sl float64
	startedAt time.Time

	state      TrailingState
	lowestSeen float64
	trailingTP float64
}

// NewFollower starts an Inactive follower for a position opened at
// startedAt.
func NewFollower(cfg TrailingConfig, entry, sl float64, startedAt time.Time) *Follower {
	return &Follower{cfg: cfg, entry: entry, sl: sl, startedAt: startedAt, state: TrailingInactive}
}

// Update feeds one price tick and reports whether the position closed.
func (f *Follower) Update(now time.Time, price float64) TrailingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == TrailingClosed {
		return TrailingEvent{}
	}

	if now.Sub(f.startedAt).Minutes() >= f.cfg.MaxTrackingMinutes {
		f.state = TrailingClosed
		return TrailingEvent{Closed: true, Reason: memory.Timeout, Price: price}
	}

	if price >= f.sl {
		f.state = TrailingClosed
		return TrailingEvent{Closed: true, Reason: memory.LossSL, Price: price}
	}

	switch f.state {
	case TrailingInactive:
		if profitPct(f.entry, price) >= f.cfg.ActivationPct {
			f.state = TrailingActive
			f.lowestSeen = price
			f.trailingTP = price * (1 + f.cfg.TrailDistancePct/100)
		}
	case TrailingActive:
		if price < f.lowestSeen {
			f.lowestSeen = price
			f.trailingTP = price * (1 + f.cfg.TrailDistancePct/100)
		}
		if price >= f.trailingTP {
			f.state = TrailingClosed
			return TrailingEvent{Closed: true, Reason: memory.WinTP1, Price: price}
		}
	}

	return TrailingEvent{}
}

// State returns the follower's current state.
func (f *Follower) State() TrailingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// runTrailingFollower polls the price source at a fixed cadence and
// drives a Follower until it closes or ctx is canceled.
func (t *Tracker) runTrailingFollower(ctx context.Context, signalID, symbol string, levels Levels, emittedAt time.Time) {
	follower := NewFollower(t.cfg.Trailing, levels.Entry, levels.SL, emittedAt)

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			price, err := t.prices.Price(ctx, symbol)
			if err != nil {
				t.log.Warn().Err(err).Str("signal_id", signalID).Msg("trailing follower price read failed")
				continue
			}

			event := follower.Update(now, price)
			if !event.Closed {
				continue
			}

			if t.tryFinalize(signalID) {
				t.updateOutcome(ctx, signalID, memory.OutcomeUpdate{
					FinalResult: resultPtr(event.Reason),
					Finalize:    true,
				})
			}
			return
		}
	}
}
