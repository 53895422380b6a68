package memory

import (
	"sort"
)

const (
	weightedDecay = 0.95
	hotColdStreak = 3
)

// DeriveCoinIntelligence is a pure function of a symbol's finalized rows
// (spec.md §4.6.2, §8 reproducibility invariant). Rows must be sorted
// oldest-first; the function does not mutate its input.
func DeriveCoinIntelligence(symbol string, rows []SignalRow) CoinIntelligence {
	finalized := make([]SignalRow, 0, len(rows))
	for _, r := range rows {
		if r.Finalized {
			finalized = append(finalized, r)
		}
	}

	ci := CoinIntelligence{Symbol: symbol, TotalSignals: len(finalized)}
	if len(finalized) == 0 {
		ci.RecommendedAction = ActionCaution
		return ci
	}

	var wins, losses int
	var tpHits [3]int
	var slHits int
	for _, r := range finalized {
		if r.FinalResult.IsWin() {
			wins++
		}
		if r.FinalResult == LossSL {
			losses++
		}
		if r.HitTP1 {
			tpHits[0]++
		}
		if r.HitTP2 {
			tpHits[1]++
		}
		if r.HitTP3 {
			tpHits[2]++
		}
		if r.HitSL {
			slHits++
		}
	}

	ci.Wins = wins
	ci.Losses = losses
	ci.WinRate = float64(wins) / float64(len(finalized))
	for i := range tpHits {
		ci.TPHitRates[i] = float64(tpHits[i]) / float64(len(finalized))
	}
	ci.SLHitRate = float64(slHits) / float64(len(finalized))

	// Weighted win rate: decay^i, newest first.
	newestFirst := make([]SignalRow, len(finalized))
	copy(newestFirst, finalized)
	sort.Slice(newestFirst, func(i, j int) bool { return newestFirst[i].CreatedAt.After(newestFirst[j].CreatedAt) })

	var weightedSum, weightTotal float64
	weight := 1.0
	for _, r := range newestFirst {
		if r.FinalResult.IsWin() {
			weightedSum += weight
		}
		weightTotal += weight
		weight *= weightedDecay
	}
	if weightTotal > 0 {
		ci.WeightedWinRate = weightedSum / weightTotal
	}

	ci.CurrentStreak, ci.StreakIsWin, ci.MaxWinStreak, ci.MaxLossStreak = streaks(newestFirst)
	ci.IsHot = ci.StreakIsWin && ci.CurrentStreak >= hotColdStreak
	ci.IsCold = !ci.StreakIsWin && ci.CurrentStreak >= hotColdStreak

	ci.TPMultiplier, ci.SLMultiplier = tpSLMultipliers(ci.TPHitRates, ci.SLHitRate)
	ci.ConfidenceAdjustment = confidenceAdjustment(ci.WinRate, ci.TotalSignals)
	ci.RecommendedAction = recommendedAction(ci.WinRate, ci.TotalSignals)
	ci.OptimalConditions = mineOptimalConditions(finalized)

	return ci
}

// streaks returns the current run length/direction ending at the newest
// row, plus the max win/loss streak lengths across the whole history.
func streaks(newestFirst []SignalRow) (current int, currentIsWin bool, maxWin int, maxLoss int) {
	if len(newestFirst) == 0 {
		return 0, false, 0, 0
	}

	currentIsWin = newestFirst[0].FinalResult.IsWin()
	current = 0
	for _, r := range newestFirst {
		if r.FinalResult.IsWin() == currentIsWin {
			current++
		} else {
			break
		}
	}

	// Oldest-first pass for max streaks.
	oldestFirst := make([]SignalRow, len(newestFirst))
	copy(oldestFirst, newestFirst)
	sort.Slice(oldestFirst, func(i, j int) bool { return oldestFirst[i].CreatedAt.Before(oldestFirst[j].CreatedAt) })

	runWin, runLoss := 0, 0
	for _, r := range oldestFirst {
		if r.FinalResult.IsWin() {
			runWin++
			runLoss = 0
		} else {
			runLoss++
			runWin = 0
		}
		if runWin > maxWin {
			maxWin = runWin
		}
		if runLoss > maxLoss {
			maxLoss = runLoss
		}
	}

	return current, currentIsWin, maxWin, maxLoss
}

// tpSLMultipliers derives TP/SL widening/tightening multipliers: frequent
// early SL with a weak TP1 rate widens SL and tightens TP; a strong TP3
// rate widens TP (spec.md §4.6.2).
func tpSLMultipliers(tpRates [3]float64, slRate float64) (tpMultiplier, slMultiplier float64) {
	tpMultiplier, slMultiplier = 1.0, 1.0

	if slRate >= 0.4 && tpRates[0] < 0.3 {
		slMultiplier = 1.2
		tpMultiplier = 0.8
	}
	if tpRates[2] >= 0.3 {
		tpMultiplier *= 1.2
	}
	return tpMultiplier, slMultiplier
}

func confidenceAdjustment(winRate float64, total int) float64 {
	switch {
	case winRate >= 0.7 && total >= 5:
		return 1.0
	case winRate >= 0.5:
		return 0
	case winRate >= 0.3:
		return -1.0
	default:
		return -2.0
	}
}

func recommendedAction(winRate float64, total int) string {
	switch {
	case winRate >= 0.7 && total >= 5:
		return ActionTrade
	case winRate >= 0.5:
		return ActionTrade
	case winRate >= 0.3:
		return ActionCaution
	default:
		return ActionAvoid
	}
}

// mineOptimalConditions derives the pump_pct range, mean combined score,
// top winning hours, and per-analyzer win/loss feature-importance delta
// from the finalized rows (spec.md §4.6.2).
func mineOptimalConditions(rows []SignalRow) OptimalConditions {
	var wins, losses []SignalRow
	for _, r := range rows {
		if r.FinalResult.IsWin() {
			wins = append(wins, r)
		} else if r.FinalResult == LossSL {
			losses = append(losses, r)
		}
	}

	oc := OptimalConditions{AnalyzerDelta: map[string]float64{}}
	if len(wins) == 0 {
		return oc
	}

	oc.MinPumpPct, oc.MaxPumpPct = wins[0].PumpPct, wins[0].PumpPct
	var scoreSum float64
	hourCounts := make(map[int]int)
	for _, w := range wins {
		if w.PumpPct < oc.MinPumpPct {
			oc.MinPumpPct = w.PumpPct
		}
		if w.PumpPct > oc.MaxPumpPct {
			oc.MaxPumpPct = w.PumpPct
		}
		scoreSum += w.CombinedScore
		hourCounts[w.CreatedAt.Hour()]++
	}
	oc.MeanCombinedScore = scoreSum / float64(len(wins))
	oc.TopHours = topHours(hourCounts, 3)

	winMeans := analyzerMeans(wins)
	lossMeans := analyzerMeans(losses)
	for name, wm := range winMeans {
		oc.AnalyzerDelta[name] = wm - lossMeans[name]
	}

	return oc
}

func analyzerMeans(rows []SignalRow) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		for name, score := range r.AnalyzerScores {
			sums[name] += score
			counts[name]++
		}
	}
	means := make(map[string]float64, len(sums))
	for name, sum := range sums {
		if counts[name] > 0 {
			means[name] = sum / float64(counts[name])
		}
	}
	return means
}

func topHours(counts map[int]int, n int) []int {
	type hc struct {
		hour  int
		count int
	}
	list := make([]hc, 0, len(counts))
	for h, c := range counts {
		list = append(list, hc{h, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].hour < list[j].hour
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]int, len(list))
	for i, e := range list {
		out[i] = e.hour
	}
	return out
}
