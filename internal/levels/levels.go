// Package levels implements the §4.8 Level Calculator: Fibonacci-based
// take-profit targets refined by speed, candle shape, orderbook walls,
// liquidation-heatmap zones, and per-symbol memory, plus an ATR-based
// stop-loss.
package levels

import (
	"math"
	"sort"

	"github.com/sawpanic/pumpshort/internal/analyzer"
)

// fibRatios are the short-exit Fibonacci retracement levels (spec.md §4.8 step 1).
var fibRatios = []float64{0.382, 0.5, 0.618}

const (
	orderbookSnapBandPct = 3.0
	snapMarkup           = 1.003
	psychRoundBandPct    = 1.0
	slPeakMarkup         = 1.01
	slATRMultiplier      = 1.5
	slMaxAboveEntryPct   = 10.0
	atrLookbackBars      = 14
)

// Input bundles everything the Level Calculator needs (spec.md §4.8).
type Input struct {
	Entry         float64
	Peak          float64
	Start         float64
	ElapsedMin    float64
	MinuteKlines  []analyzer.Kline // last N 1m bars, used for ATR
	Orderbook     *analyzer.Orderbook
	Candle        *analyzer.CandleDetail
	Liquidation   *analyzer.LiquidationDetail
	TPMultiplier  float64 // memory.tp_multiplier, 1.0 if untrained
}

// Output is the final level set: ascending TP prices plus a stop-loss.
type Output struct {
	TPPrices []float64
	SL       float64
}

// Calculate runs the full §4.8 pipeline.
func Calculate(in Input) Output {
	raw := fibonacciTargets(in.Peak, in.Start)
	raw = applySpeedMultiplier(raw, in.Peak, in.ElapsedMin)
	raw = applyCandleMultiplier(raw, in.Peak, in.Candle)
	raw = applyOrderbookSnap(raw, in.Orderbook)
	raw = applyLiquidationOverlay(raw, in.Liquidation)

	multiplier := in.TPMultiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	final := make([]float64, len(raw))
	for i, tp := range raw {
		final[i] = in.Entry - (in.Entry-tp)*multiplier
	}
	for i, tp := range final {
		final[i] = roundToPsychological(tp, in.Entry)
	}

	sort.Float64s(final)

	sl := stopLoss(in.Entry, in.Peak, in.MinuteKlines)

	return Output{TPPrices: final, SL: sl}
}

// fibonacciTargets computes fib(k) = peak - (peak-start)*k for each ratio,
// short-exit targets descending from peak toward start.
func fibonacciTargets(peak, start float64) []float64 {
	targets := make([]float64, len(fibRatios))
	span := peak - start
	for i, k := range fibRatios {
		targets[i] = peak - span*k
	}
	return targets
}

// applySpeedMultiplier widens or tightens the distance from peak to each
// target depending on how fast the pump formed (spec.md §4.8 step 2).
func applySpeedMultiplier(targets []float64, peak, elapsedMin float64) []float64 {
	mult := speedMultiplier(elapsedMin)
	out := make([]float64, len(targets))
	for i, tp := range targets {
		out[i] = peak - (peak-tp)*mult
	}
	return out
}

func speedMultiplier(elapsedMin float64) float64 {
	switch {
	case elapsedMin <= 2:
		return 1.4
	case elapsedMin <= 5:
		return 1.2
	case elapsedMin <= 10:
		return 1.0
	default:
		return 0.8
	}
}

// applyCandleMultiplier widens targets further when the triggering candle
// shows a long upper wick or shooting star (spec.md §4.8 step 3, §4.4 #10).
func applyCandleMultiplier(targets []float64, peak float64, candle *analyzer.CandleDetail) []float64 {
	if candle == nil {
		return targets
	}
	mult := 1.0
	switch {
	case candle.ShootingStar || candle.BearishEngulfing:
		mult = 1.3
	case candle.LongUpperWick:
		mult = 1.15
	}
	if mult == 1.0 {
		return targets
	}
	out := make([]float64, len(targets))
	for i, tp := range targets {
		out[i] = peak - (peak-tp)*mult
	}
	return out
}

// applyOrderbookSnap moves each target to just above the nearest large bid
// wall within ±3%, if one exists (spec.md §4.8 step 4).
func applyOrderbookSnap(targets []float64, ob *analyzer.Orderbook) []float64 {
	if ob == nil {
		return targets
	}
	out := make([]float64, len(targets))
	copy(out, targets)

	for i, tp := range targets {
		if wall, ok := nearestBidWall(ob.Bids, tp); ok {
			out[i] = wall * snapMarkup
		}
	}
	return out
}

func nearestBidWall(bids []analyzer.Level, target float64) (float64, bool) {
	lo := target * (1 - orderbookSnapBandPct/100)
	hi := target * (1 + orderbookSnapBandPct/100)

	var totalQty float64
	for _, l := range bids {
		totalQty += l.Qty
	}
	if totalQty == 0 {
		return 0, false
	}

	bestPrice, bestDist := 0.0, math.MaxFloat64
	found := false
	for _, l := range bids {
		if l.Price < lo || l.Price > hi {
			continue
		}
		if l.Qty/totalQty < 0.15 {
			continue
		}
		dist := math.Abs(l.Price - target)
		if dist < bestDist {
			bestDist = dist
			bestPrice = l.Price
			found = true
		}
	}
	return bestPrice, found
}

// applyLiquidationOverlay blends each Fibonacci target 50/50 with the
// nearest ranked long-liquidation zone, if any were produced (spec.md
// §4.8 step 5, §4.4 #4).
func applyLiquidationOverlay(targets []float64, liq *analyzer.LiquidationDetail) []float64 {
	if liq == nil || len(liq.LongZones) == 0 {
		return targets
	}
	out := make([]float64, len(targets))
	for i, tp := range targets {
		zone := nearestZone(liq.LongZones, tp)
		out[i] = (tp + zone) / 2
	}
	return out
}

func nearestZone(zones []analyzer.LiqZone, target float64) float64 {
	best := zones[0].Price
	bestDist := math.Abs(best - target)
	for _, z := range zones[1:] {
		dist := math.Abs(z.Price - target)
		if dist < bestDist {
			bestDist = dist
			best = z.Price
		}
	}
	return best
}

// roundToPsychological snaps price to the nearest round number if doing
// so moves it by less than 1% (spec.md §4.8 step 7).
func roundToPsychological(price, entry float64) float64 {
	step := psychologicalStep(entry)
	if step <= 0 {
		return price
	}
	rounded := math.Round(price/step) * step
	if entry == 0 {
		return price
	}
	if math.Abs(rounded-price)/entry*100 <= psychRoundBandPct {
		return rounded
	}
	return price
}

// psychologicalStep picks a round-number step scaled to the asset's price
// magnitude: one tenth of the nearest power of ten below entry.
func psychologicalStep(entry float64) float64 {
	if entry <= 0 {
		return 0
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(entry)))
	return magnitude / 10
}

// stopLoss implements spec.md §4.8 step 9.
func stopLoss(entry, peak float64, minuteKlines []analyzer.Kline) float64 {
	atrPct := atrPercent(minuteKlines, entry)
	sl := math.Max(peak*slPeakMarkup, entry*(1+atrPct*slATRMultiplier/100))
	maxSL := entry * (1 + slMaxAboveEntryPct/100)
	if sl > maxSL {
		sl = maxSL
	}
	return sl
}

// atrPercent computes the mean true range over the last 14 minute bars as
// a percentage of entry.
func atrPercent(klines []analyzer.Kline, entry float64) float64 {
	if len(klines) < 2 || entry <= 0 {
		return 0
	}
	window := klines
	if len(window) > atrLookbackBars+1 {
		window = window[len(window)-atrLookbackBars-1:]
	}

	var sum float64
	count := 0
	for i := 1; i < len(window); i++ {
		prevClose := window[i-1].C
		tr := trueRange(window[i], prevClose)
		sum += tr
		count++
	}
	if count == 0 {
		return 0
	}
	return (sum / float64(count)) / entry * 100
}

func trueRange(k analyzer.Kline, prevClose float64) float64 {
	hl := k.H - k.L
	hc := math.Abs(k.H - prevClose)
	lc := math.Abs(k.L - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
