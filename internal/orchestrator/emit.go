package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/pumpshort/internal/analyzer"
	"github.com/sawpanic/pumpshort/internal/broadcaster"
	"github.com/sawpanic/pumpshort/internal/levels"
	"github.com/sawpanic/pumpshort/internal/memory"
	"github.com/sawpanic/pumpshort/internal/outcome"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/scoring"
)

// tick is one ANALYZING-loop scoring pass, carrying everything
// emitSignal needs alongside the verdict itself. Kept local to each
// call rather than on the Orchestrator, which is shared across
// concurrently running symbol actors.
type tick struct {
	Score     scoring.Output
	Analyzers map[analyzer.Name]analyzer.Result
	CI        memory.CoinIntelligence
}

// scoreAt runs one ANALYZING-loop tick's scoring pipeline (spec.md
// §4.5): fan out the ten analyzers, fold in Memory's confidence
// adjustment and the smart-prediction overlay, and blend in the
// classifier's win probability once trained.
func (o *Orchestrator) scoreAt(ctx context.Context, event pumpdetector.PumpEvent, price float64) (tick, bool) {
	in, err := o.deps.Market.AnalyzerInput(ctx, event.Symbol, event, price, time.Now())
	if err != nil {
		return tick{}, false
	}
	results := o.deps.Analyzers.Run(ctx, in)

	ci, err := o.deps.Memory.Intelligence(ctx, event.Symbol)
	if err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("intelligence lookup failed")
		ci = memory.CoinIntelligence{}
	}

	prelim := scoring.Score(scoring.Input{
		AnalyzerResults:      results,
		ConfidenceAdjustment: ci.ConfidenceAdjustment,
	})

	overlay, err := o.deps.Memory.Overlay(ctx, event.Symbol, memory.OverlayInput{
		PumpPct:       event.PumpPct,
		CombinedScore: prelim.Adjusted,
		Hour:          in.Now.Hour(),
	})
	if err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("overlay lookup failed")
	}

	var trained bool
	var probability float64
	if o.deps.Classifier != nil && o.deps.Classifier.IsTrained() {
		pred, err := o.deps.Classifier.Predict(buildFeatures(event, results, prelim.Adjusted, in.Now))
		if err == nil {
			trained = true
			probability = pred.Probability
		}
	}

	final := scoring.Score(scoring.Input{
		AnalyzerResults:       results,
		ConfidenceAdjustment:  ci.ConfidenceAdjustment,
		ClassifierTrained:     trained,
		ClassifierProbability: probability,
		SmartOverlayDelta:     overlay.Delta,
	})

	return tick{Score: final, Analyzers: results, CI: ci}, true
}

func buildFeatures(event pumpdetector.PumpEvent, results map[analyzer.Name]analyzer.Result, combinedScore float64, now time.Time) []float64 {
	score := func(n analyzer.Name) float64 {
		if r, ok := results[n]; ok {
			return r.Score
		}
		return analyzer.NeutralScore
	}
	return []float64{
		event.PumpPct,
		combinedScore,
		score(analyzer.OrderbookPressure),
		score(analyzer.OpenInterestDelta),
		score(analyzer.FundingRate),
		score(analyzer.LiquidationHeatmap),
		score(analyzer.BTCCorrelation),
		score(analyzer.MultiTimeframe),
		score(analyzer.VolumeProfile),
		score(analyzer.CrossPair),
		score(analyzer.GodEye),
		score(analyzer.CandleStructure),
		event.ElapsedMinutes,
		float64(now.Hour()),
	}
}

// emitSignal finalizes the EMITTED transition: compute levels, record the
// SignalMemory row, broadcast, and hand the signal off to the Outcome
// Tracker (spec.md §4.3's EMITTED→TRACKING, §4.6.1 step 1, §4.7).
func (o *Orchestrator) emitSignal(ctx context.Context, event pumpdetector.PumpEvent, t tick, entry, start float64) {
	var candle *analyzer.CandleDetail
	var liq *analyzer.LiquidationDetail
	if r, ok := t.Analyzers[analyzer.CandleStructure]; ok {
		if d, ok := r.Detail.(analyzer.CandleDetail); ok {
			candle = &d
		}
	}
	if r, ok := t.Analyzers[analyzer.LiquidationHeatmap]; ok {
		if d, ok := r.Detail.(analyzer.LiquidationDetail); ok {
			liq = &d
		}
	}

	out := levels.Calculate(levels.Input{
		Entry:        entry,
		Peak:         event.PricePeak,
		Start:        start,
		ElapsedMin:   event.ElapsedMinutes,
		Candle:       candle,
		Liquidation:  liq,
		TPMultiplier: t.CI.TPMultiplier,
	})
	if len(out.TPPrices) != 3 {
		o.deps.Log.Error().Str("symbol", event.Symbol).Msg("level calculator returned unexpected TP count")
		return
	}

	scores := make(memory.AnalyzerScores, len(t.Analyzers))
	for name, r := range t.Analyzers {
		scores[string(name)] = r.Score
	}

	row := memory.SignalRow{
		Symbol:         event.Symbol,
		CreatedAt:      event.DetectedAt,
		PumpPct:        event.PumpPct,
		PumpElapsedMin: event.ElapsedMinutes,
		EntryPrice:     entry,
		PeakPrice:      event.PricePeak,
		StartPrice:     start,
		SLPrice:        out.SL,
		TPPrices:       [3]float64{out.TPPrices[0], out.TPPrices[1], out.TPPrices[2]},
		AnalyzerScores: scores,
		CombinedScore:  t.Score.Final,
		Tier:           string(t.Score.Tier),
	}

	id, err := o.deps.Memory.RecordSignal(ctx, row)
	if err != nil {
		o.deps.Log.Error().Err(err).Str("symbol", event.Symbol).Msg("record signal failed")
		return
	}

	text := fmt.Sprintf("%s SHORT entry %.6f TP1 %.6f TP2 %.6f TP3 %.6f SL %.6f",
		event.Symbol, entry, out.TPPrices[2], out.TPPrices[1], out.TPPrices[0], out.SL)
	if err := o.deps.Broadcaster.Broadcast(ctx, text, nil, broadcaster.Options{}); err != nil {
		o.deps.Log.Warn().Err(err).Str("symbol", event.Symbol).Msg("signal broadcast failed")
	}

	// TPPrices is ascending by price; outcome.Levels wants TP1 nearest
	// entry (highest price, hit first as price falls) through TP3
	// deepest — the reverse order.
	//
	// Track blocks until every tracking mechanism it launches finishes
	// (up to its longest horizon), so it must run on its own goroutine
	// here rather than inline: emitSignal returns right after the
	// EMITTED→TRACKING handoff, letting runActor's deferred freeSlot
	// release the per-symbol slot immediately instead of holding it for
	// the tracker's full lifetime (spec.md §4.3).
	go o.deps.Tracker.Track(o.background, id, event.Symbol, outcome.Levels{
		Entry: entry,
		TP1:   out.TPPrices[2],
		TP2:   out.TPPrices[1],
		TP3:   out.TPPrices[0],
		SL:    out.SL,
	}, event.DetectedAt)
}
