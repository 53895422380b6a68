// Package scoring implements the Scoring Engine of spec.md §4.5:
// combine the ten analyzer scores by unweighted mean, apply the Memory
// confidence adjustment, blend in the classifier's probability, apply the
// smart-prediction overlay, and classify into a tier.
package scoring

import (
	"github.com/sawpanic/pumpshort/internal/analyzer"
)

// Tier is the emitted quality classification.
type Tier string

const (
	TierA      Tier = "A"
	TierB      Tier = "B"
	TierReject Tier = "REJECT"
)

const (
	tierAThreshold = 8.0
	tierBThreshold = 6.0
)

// Input bundles everything the Scoring Engine needs to produce a verdict.
type Input struct {
	AnalyzerResults      map[analyzer.Name]analyzer.Result
	ConfidenceAdjustment float64 // Memory's per-symbol confidence_adjustment, clamped [-2,2]
	ClassifierTrained    bool
	ClassifierProbability float64 // [0,1], ignored unless ClassifierTrained
	SmartOverlayDelta    float64 // signed correction from §4.6.3; Score clamps it to ±2 before applying it
}

// Output is the final verdict.
type Output struct {
	Base         float64
	Adjusted     float64
	Blended      float64
	Final        float64
	Tier         Tier
}

// Score implements spec.md §4.5 steps 1-5.
func Score(in Input) Output {
	base := meanScore(in.AnalyzerResults)

	adjusted := clamp(base+in.ConfidenceAdjustment, 0, 10)

	blended := adjusted
	if in.ClassifierTrained {
		blended = (adjusted + in.ClassifierProbability*10) / 2
	}

	overlayDelta := clamp(in.SmartOverlayDelta, -2, 2)
	final := clamp(blended+overlayDelta, 0, 10)

	return Output{
		Base:     base,
		Adjusted: adjusted,
		Blended:  blended,
		Final:    final,
		Tier:     tierFor(final),
	}
}

func tierFor(score float64) Tier {
	switch {
	case score >= tierAThreshold:
		return TierA
	case score >= tierBThreshold:
		return TierB
	default:
		return TierReject
	}
}

// meanScore is the unweighted mean of the ten analyzer scores. Unweighted
// by design (spec.md §4.5 rationale): per-symbol adaptation is Memory's job,
// not a set of hand-tuned analyzer weights.
func meanScore(results map[analyzer.Name]analyzer.Result) float64 {
	if len(results) == 0 {
		return analyzer.NeutralScore
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
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
