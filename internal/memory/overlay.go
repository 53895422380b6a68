package memory

import "math"

// OverlayInput is the signal-attempt context the smart-prediction overlay
// reasons about (spec.md §4.6.3).
type OverlayInput struct {
	PumpPct       float64
	CombinedScore float64
	Hour          int
}

// SimilarSignal is one historically similar signal used by the ±1.0
// similarity adjustment.
type SimilarSignal struct {
	PumpPct float64
	Score   float64
	IsWin   bool
}

// OverlayResult is the overlay's final score plus its reasoning bundle.
type OverlayResult struct {
	Score      float64
	Delta      float64 // Score - 5.0, the net adjustment applied
	Confidence float64
	Reasoning  []string
}

const similarityPumpBand = 10.0
const similarityScoreBand = 2.0

// ApplySmartOverlay implements spec.md §4.6.3 step by step, given the
// symbol's CoinIntelligence and a slice of historically similar signals
// (already pre-filtered or to be filtered here by |Δpump|<10%, |Δscore|<2).
func ApplySmartOverlay(ci CoinIntelligence, in OverlayInput, candidates []SimilarSignal) OverlayResult {
	score := 5.0
	var reasoning []string

	switch {
	case ci.WinRate >= 0.7:
		score += 2
		reasoning = append(reasoning, "win rate >= 70%: +2.0")
	case ci.WinRate >= 0.5:
		score += 0.5
		reasoning = append(reasoning, "win rate >= 50%: +0.5")
	case ci.WinRate >= 0.3:
		if ci.TotalSignals >= 5 {
			score -= 1.0
			reasoning = append(reasoning, "win rate >= 30% but weak: -1.0")
		}
	default:
		if ci.TotalSignals >= 5 {
			score -= 2.0
			reasoning = append(reasoning, "win rate < 30%: -2.0")
		}
	}

	if math.Abs(ci.WeightedWinRate-ci.WinRate) >= 0.1 {
		if ci.WeightedWinRate > ci.WinRate {
			score += 0.5
			reasoning = append(reasoning, "recent results trending better than average: +0.5")
		} else {
			score -= 0.5
			reasoning = append(reasoning, "recent results trending worse than average: -0.5")
		}
	}

	similar := filterSimilar(candidates, in.PumpPct, in.CombinedScore)
	if len(similar) >= 5 {
		winRate := similarWinRate(similar)
		switch {
		case winRate >= 0.7:
			score += 1.0
			reasoning = append(reasoning, "similar historical signals won >= 70% of the time: +1.0")
		case winRate <= 0.3:
			score -= 1.0
			reasoning = append(reasoning, "similar historical signals won <= 30% of the time: -1.0")
		}
	}

	if ci.IsHot {
		score += 0.5
		reasoning = append(reasoning, "symbol is on a hot streak: +0.5")
	}
	if ci.IsCold {
		score -= 0.5
		reasoning = append(reasoning, "symbol is on a cold streak: -0.5")
	}

	if in.PumpPct >= ci.OptimalConditions.MinPumpPct && in.PumpPct <= ci.OptimalConditions.MaxPumpPct && ci.OptimalConditions.MaxPumpPct > 0 {
		score += 0.5
		reasoning = append(reasoning, "pump_pct inside optimal range: +0.5")
	}
	if containsHour(ci.OptimalConditions.TopHours, in.Hour) {
		score += 0.5
		reasoning = append(reasoning, "hour is a top winning hour: +0.5")
	}

	switch {
	case in.CombinedScore >= 8:
		score += 1.0
		reasoning = append(reasoning, "raw combined score is high: +1.0")
	case in.CombinedScore >= 6:
		score += 0.5
		reasoning = append(reasoning, "raw combined score is moderate: +0.5")
	default:
		score -= 1.0
		reasoning = append(reasoning, "raw combined score is low: -1.0")
	}

	final := clamp(score, 0, 10)

	return OverlayResult{
		Score:      final,
		Delta:      final - 5.0,
		Confidence: confidenceFor(ci.TotalSignals),
		Reasoning:  reasoning,
	}
}

func filterSimilar(candidates []SimilarSignal, pumpPct, combinedScore float64) []SimilarSignal {
	var out []SimilarSignal
	for _, c := range candidates {
		if math.Abs(c.PumpPct-pumpPct) < similarityPumpBand && math.Abs(c.Score-combinedScore) < similarityScoreBand {
			out = append(out, c)
		}
	}
	return out
}

func similarWinRate(signals []SimilarSignal) float64 {
	if len(signals) == 0 {
		return 0
	}
	wins := 0
	for _, s := range signals {
		if s.IsWin {
			wins++
		}
	}
	return float64(wins) / float64(len(signals))
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}

func confidenceFor(total int) float64 {
	switch {
	case total >= 20:
		return 0.9
	case total >= 10:
		return 0.7
	case total >= 5:
		return 0.5
	default:
		return 0.3
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
