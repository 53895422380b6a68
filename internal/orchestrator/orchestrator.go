// Package orchestrator implements the §4.3 Signal Orchestrator: one
// logical actor per active symbol, newly authored in the teacher's
// idiom of explicit struct states, context cancellation, and deferred
// flag release — the teacher's own pipeline is a linear scan, not a
// per-symbol state machine, so this module generalizes that idiom
// rather than adapting a single teacher file line-for-line.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/pumpshort/internal/analyzer"
	"github.com/sawpanic/pumpshort/internal/broadcaster"
	"github.com/sawpanic/pumpshort/internal/classifier"
	"github.com/sawpanic/pumpshort/internal/cooldown"
	"github.com/sawpanic/pumpshort/internal/memory"
	"github.com/sawpanic/pumpshort/internal/outcome"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/scoring"
)

// MarketData is the market-data port the orchestrator needs: a cheap
// current price for the confirmation/analyzing loops, and the richer
// analyzer.Input bundle once a signal is about to be scored.
type MarketData interface {
	Price(ctx context.Context, symbol string) (float64, error)
	AnalyzerInput(ctx context.Context, symbol string, event pumpdetector.PumpEvent, entryPrice float64, now time.Time) (analyzer.Input, error)
}

// Dependencies bundles every collaborator the orchestrator wires
// together (spec.md §4.3-§4.8).
type Dependencies struct {
	Cooldown    cooldown.Store
	Policy      cooldown.Policy
	Broadcaster broadcaster.Broadcaster
	Market      MarketData
	Analyzers   *analyzer.Suite
	Memory      *memory.Store
	Classifier  classifier.Classifier
	Tracker     *outcome.Tracker
	Log         zerolog.Logger
}

type actorHandle struct {
	cancel context.CancelFunc
}

// Orchestrator owns the per-symbol actor registry and routes PumpEvents
// into it (spec.md §4.3's concurrency discipline).
type Orchestrator struct {
	deps       Dependencies
	background context.Context

	mu     sync.Mutex
	actors map[string]*actorHandle
}

// New wires an Orchestrator. background is used for work that must
// outlive a single actor's lifetime — the Outcome Tracker handoff at
// EMITTED→TRACKING, which the orchestrator slot no longer guards.
func New(deps Dependencies, background context.Context) *Orchestrator {
	return &Orchestrator{deps: deps, background: background, actors: make(map[string]*actorHandle)}
}

// ActiveActorCount returns the number of symbols currently running a
// per-symbol actor, for the ops status endpoint.
func (o *Orchestrator) ActiveActorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.actors)
}

func tierRank(k pumpdetector.Kind) int {
	switch k {
	case pumpdetector.KindFast:
		return 2
	case pumpdetector.KindElite:
		return 1
	default:
		return 0
	}
}

func parseTier(s string) pumpdetector.Kind {
	switch s {
	case pumpdetector.KindFast.String():
		return pumpdetector.KindFast
	case pumpdetector.KindElite.String():
		return pumpdetector.KindElite
	default:
		return pumpdetector.KindNone
	}
}

// HandlePumpEvent is the IDLE-state entry point: spec.md §4.3's
// IDLE→NOTIFIED transition, folded together with the "any state →
// REPLACED" rule and the active_analysis concurrency guard.
func (o *Orchestrator) HandlePumpEvent(ctx context.Context, event pumpdetector.PumpEvent) {
	entry, err := o.deps.Cooldown.Get(ctx, event.Symbol)
	if err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("cooldown lookup failed")
		return
	}
	isNew := entry.LastNotifyTime.IsZero() && entry.LastNotifiedPeak == 0

	o.mu.Lock()
	existing, running := o.actors[event.Symbol]
	replace := running && !isNew && cooldown.ShouldReplace(entry, event.PricePeak)

	if running && !replace {
		o.mu.Unlock()
		return
	}
	if replace {
		existing.cancel()
		delete(o.actors, event.Symbol)
		_ = o.deps.Cooldown.Release(ctx, event.Symbol)
	}

	ok, err := o.deps.Cooldown.Acquire(ctx, event.Symbol)
	if err != nil || !ok {
		o.mu.Unlock()
		return
	}

	tierRose := tierRank(event.Kind) > tierRank(parseTier(entry.LastNotifiedTier))
	shouldNotify := cooldown.ShouldNotify(o.deps.Policy, entry, isNew, tierRose, event.PricePeak, event.DetectedAt)

	actorCtx, cancel := context.WithCancel(ctx)
	o.actors[event.Symbol] = &actorHandle{cancel: cancel}
	o.mu.Unlock()

	if shouldNotify {
		entry.LastNotifiedPeak = event.PricePeak
		entry.LastNotifiedTier = event.Kind.String()
		entry.LastNotifyTime = event.DetectedAt
		if err := o.deps.Cooldown.Set(ctx, event.Symbol, entry); err != nil {
			o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("cooldown update failed")
		}
		o.notify(actorCtx, event)
	}

	go o.runActor(actorCtx, event)
}

func (o *Orchestrator) notify(ctx context.Context, event pumpdetector.PumpEvent) {
	text := fmt.Sprintf("%s %s pump: +%.2f%%", event.Symbol, event.Kind.String(), event.PumpPct)
	if err := o.deps.Broadcaster.Broadcast(ctx, text, nil, broadcaster.Options{}); err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("broadcast failed")
	}
}

func (o *Orchestrator) freeSlot(symbol string) {
	o.mu.Lock()
	delete(o.actors, symbol)
	o.mu.Unlock()
	_ = o.deps.Cooldown.Release(context.Background(), symbol)
}

// runActor drives one symbol's CONFIRMING → {EMITTED, ANALYZING →
// {EMITTED, ABANDONED}} run to completion.
func (o *Orchestrator) runActor(ctx context.Context, event pumpdetector.PumpEvent) {
	defer o.freeSlot(event.Symbol)

	params := confirmParamsByKind[event.Kind]
	confirmedPrice, peak, confirmed := o.runConfirmationLoop(ctx, event, params)
	if ctx.Err() != nil {
		return
	}

	if confirmed {
		// Instant-short fast path: the reversal already confirmed, so
		// score once here purely for analyzer attribution on the
		// recorded row, not as an emit gate.
		t, ok := o.scoreAt(ctx, event, confirmedPrice)
		if !ok {
			t = tick{CI: memory.CoinIntelligence{}}
		}
		o.emitSignal(ctx, event, t, confirmedPrice, event.PriceStart)
		return
	}

	o.runAnalyzingLoop(ctx, event, peak)
}

var confirmParamsByKind = map[pumpdetector.Kind]confirmParams{
	pumpdetector.KindFast:  {timeout: 60 * time.Second, reversalPct: 0.5, pollInterval: 500 * time.Millisecond},
	pumpdetector.KindElite: {timeout: 120 * time.Second, reversalPct: 1.0, pollInterval: 1 * time.Second},
}

// runConfirmationLoop polls price at params.pollInterval until either a
// reversal of params.reversalPct from the running peak is confirmed or
// params.timeout elapses.
func (o *Orchestrator) runConfirmationLoop(ctx context.Context, event pumpdetector.PumpEvent, params confirmParams) (price, peak float64, confirmed bool) {
	deadline := time.Now().Add(params.timeout)
	peak = event.PricePeak

	ticker := time.NewTicker(params.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, peak, false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return 0, peak, false
			}
			p, err := o.deps.Market.Price(ctx, event.Symbol)
			if err != nil {
				continue
			}
			newPeak, ok := evaluateConfirmation(peak, p, params.reversalPct)
			peak = newPeak
			if ok {
				return p, peak, true
			}
		}
	}
}

// runAnalyzingLoop implements the ANALYZING slow path: poll, check
// abandonment, and run the scoring pipeline each tick until a tier-A/B
// result emits, the pump unwinds, or the 15-minute cap expires.
func (o *Orchestrator) runAnalyzingLoop(ctx context.Context, event pumpdetector.PumpEvent, peak float64) {
	start := time.Now()
	lastNoSignal := time.Time{}

	for {
		elapsed := time.Since(start)
		if elapsed >= analyzingMaxDuration {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(analyzingPollInterval(elapsed)):
		}

		price, err := o.deps.Market.Price(ctx, event.Symbol)
		if err != nil {
			continue
		}
		if price > peak {
			peak = price
		}

		if evaluateAbandon(peak, event.PriceStart, price) {
			if lastNoSignal.IsZero() || time.Since(lastNoSignal) >= noSignalNotifyWindow {
				o.notifyNoSignal(ctx, event)
				lastNoSignal = time.Now()
			}
			return
		}

		t, ok := o.scoreAt(ctx, event, price)
		if !ok {
			continue
		}
		if t.Score.Tier == scoring.TierA || t.Score.Tier == scoring.TierB {
			o.emitSignal(ctx, event, t, price, event.PriceStart)
			return
		}
	}
}

func (o *Orchestrator) notifyNoSignal(ctx context.Context, event pumpdetector.PumpEvent) {
	text := event.Symbol + " pump unwound, no signal"
	if err := o.deps.Broadcaster.Broadcast(ctx, text, nil, broadcaster.Options{Silent: true}); err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("no-signal broadcast failed")
	}
}
