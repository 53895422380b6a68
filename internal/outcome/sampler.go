package outcome

import (
	"context"
	"time"

	"github.com/sawpanic/pumpshort/internal/memory"
)

// Horizons are the scheduled sampling offsets from signal emission
// (spec.md §4.7.1).
var Horizons = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
	240 * time.Minute,
}

const breakevenBandPct = 0.5

// HorizonSample is one scheduled price read, taken in ascending horizon
// order.
type HorizonSample struct {
	Horizon time.Duration
	Price   float64
}

// classifySample reports which levels a single price sample has reached
// under short semantics: TP hit iff sample <= tp, SL hit iff sample >= sl.
func classifySample(levels Levels, price float64) (hitTP1, hitTP2, hitTP3, hitSL bool) {
	return price <= levels.TP1, price <= levels.TP2, price <= levels.TP3, price >= levels.SL
}

// DeriveFinalResult implements spec.md §4.7.1's derivation: scanning
// samples in chronological order, the first horizon at which any TP is
// hit wins (tiered to the deepest level reached at that horizon); an SL
// hit before any TP is a loss; otherwise the last sample decides
// breakeven vs. timeout. Pure function of levels, entry, and samples.
func DeriveFinalResult(levels Levels, entry float64, samples []HorizonSample) memory.FinalResult {
	for _, s := range samples {
		tp1, tp2, tp3, sl := classifySample(levels, s.Price)
		switch {
		case tp3:
			return memory.WinTP3
		case tp2:
			return memory.WinTP2
		case tp1:
			return memory.WinTP1
		case sl:
			return memory.LossSL
		}
	}

	if len(samples) == 0 {
		return memory.Timeout
	}
	last := samples[len(samples)-1].Price
	if entry != 0 && absPct(last, entry) <= breakevenBandPct {
		return memory.Breakeven
	}
	return memory.Timeout
}

func absPct(price, entry float64) float64 {
	d := (price - entry) / entry * 100
	if d < 0 {
		return -d
	}
	return d
}

// runScheduledSampler waits out each horizon in turn, reads a price,
// updates the row's cumulative hit flags and profit/drawdown extremes,
// and at the final horizon derives and writes final_result. It exits
// early, without finalizing, if ctx is canceled.
func (t *Tracker) runScheduledSampler(ctx context.Context, signalID, symbol string, levels Levels, emittedAt time.Time) {
	var samples []HorizonSample
	var maxProfit, maxDrawdown float64
	var hitTP1, hitTP2, hitTP3, hitSL bool

	for i, horizon := range Horizons {
		wait := time.Until(emittedAt.Add(horizon))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		price, err := t.prices.Price(ctx, symbol)
		if err != nil {
			t.log.Warn().Err(err).Str("signal_id", signalID).Dur("horizon", horizon).Msg("scheduled sample failed")
			continue
		}

		samples = append(samples, HorizonSample{Horizon: horizon, Price: price})
		tp1, tp2, tp3, sl := classifySample(levels, price)
		hitTP1 = hitTP1 || tp1
		hitTP2 = hitTP2 || tp2
		hitTP3 = hitTP3 || tp3
		hitSL = hitSL || sl

		if p := profitPct(levels.Entry, price); p > maxProfit {
			maxProfit = p
		}
		if d := drawdownPct(levels.Entry, price); d > maxDrawdown {
			maxDrawdown = d
		}

		upd := memory.OutcomeUpdate{
			HitTP1:         boolPtr(hitTP1),
			HitTP2:         boolPtr(hitTP2),
			HitTP3:         boolPtr(hitTP3),
			HitSL:          boolPtr(hitSL),
			MaxProfitPct:   floatPtr(maxProfit),
			MaxDrawdownPct: floatPtr(maxDrawdown),
		}
		setHorizonPrice(&upd, i, price)

		last := i == len(Horizons)-1
		result := DeriveFinalResult(levels, levels.Entry, samples)
		decided := result != memory.Timeout && result != memory.Breakeven

		if decided || last {
			if t.tryFinalize(signalID) {
				upd.FinalResult = resultPtr(result)
				upd.Finalize = true
			}
		}

		t.updateOutcome(ctx, signalID, upd)

		if decided {
			return
		}
	}
}

func setHorizonPrice(upd *memory.OutcomeUpdate, horizonIndex int, price float64) {
	switch horizonIndex {
	case 0:
		upd.Price5m = floatPtr(price)
	case 1:
		upd.Price15m = floatPtr(price)
	case 2:
		upd.Price30m = floatPtr(price)
	case 3:
		upd.Price1h = floatPtr(price)
	case 4:
		upd.Price4h = floatPtr(price)
	}
}
