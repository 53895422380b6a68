// Package classifier implements the §4.6.4 win-probability classifier: a
// trainable Classifier interface and its difference-of-means
// implementation, following the Fit/Predict split of
// internal/score/calibration/isotonic.go. The package contains no
// gradient-boosted implementation; DiffOfMeansClassifier is the only one.
package classifier

import (
	"fmt"
	"math"
	"time"
)

// FeatureNames is the fixed, ordered feature vector §4.6.4 trains on: pump
// percentage, combined score, the ten analyzer scores, pump speed, and
// hour of day.
var FeatureNames = []string{
	"pump_pct",
	"combined_score",
	"orderbook_pressure",
	"open_interest_delta",
	"funding_rate",
	"liquidation_heatmap",
	"btc_correlation",
	"multi_timeframe",
	"volume_profile",
	"cross_pair",
	"god_eye",
	"candle_structure",
	"pump_speed_min",
	"hour_of_day",
}

// Sample is one training example: the feature vector plus its binary
// label (1 if final_result starts with WIN, else 0).
type Sample struct {
	Features []float64
	Label    int
}

// Prediction is the classifier's output for a feature vector, returned by
// every Classifier implementation.
type Prediction struct {
	Probability         float64
	PredictedWin        bool
	Confidence          float64
	FeatureContributions map[string]float64
}

// MinTrainingSamples is the minimum finalized outcomes before the
// classifier is trained and consulted (spec.md §4.6.4).
const MinTrainingSamples = 20

// Config tunes how often the classifier retrains.
type Config struct {
	RetrainEvery int // retrain after every N new finalized outcomes, default 1
}

// DefaultConfig retrains on every new finalized outcome once the minimum
// sample count is met.
func DefaultConfig() Config {
	return Config{RetrainEvery: 1}
}

// Classifier is the trainable interface both implementations satisfy.
type Classifier interface {
	Fit(samples []Sample) error
	Predict(features []float64) (Prediction, error)
	IsTrained() bool
	SampleCount() int
}

// DiffOfMeansClassifier is the §4.6.4 fallback: per-feature
// difference-of-means (win_mean - loss_mean) as weight, per-feature
// midpoint as threshold, scored via a logistic squash. Used whenever no
// gradient-boosted implementation is wired (spec.md §4.6.4 explicitly
// specifies this as the no-ML-library path, not a workaround).
type DiffOfMeansClassifier struct {
	weights     []float64
	thresholds  []float64
	fittedAt    time.Time
	sampleCount int
}

// NewDiffOfMeansClassifier returns an untrained classifier.
func NewDiffOfMeansClassifier() *DiffOfMeansClassifier {
	return &DiffOfMeansClassifier{}
}

// Fit computes each feature's difference-of-means weight and midpoint
// threshold from the labeled samples.
func (c *DiffOfMeansClassifier) Fit(samples []Sample) error {
	if len(samples) < MinTrainingSamples {
		return fmt.Errorf("insufficient samples to fit classifier: need %d, got %d", MinTrainingSamples, len(samples))
	}

	n := len(FeatureNames)
	for _, s := range samples {
		if len(s.Features) != n {
			return fmt.Errorf("sample has %d features, want %d", len(s.Features), n)
		}
	}

	winSums := make([]float64, n)
	lossSums := make([]float64, n)
	minVals := make([]float64, n)
	maxVals := make([]float64, n)
	var wins, losses int

	for i, v := range samples[0].Features {
		minVals[i], maxVals[i] = v, v
	}

	for _, s := range samples {
		if s.Label == 1 {
			wins++
		} else {
			losses++
		}
		for i, v := range s.Features {
			if s.Label == 1 {
				winSums[i] += v
			} else {
				lossSums[i] += v
			}
			if v < minVals[i] {
				minVals[i] = v
			}
			if v > maxVals[i] {
				maxVals[i] = v
			}
		}
	}

	weights := make([]float64, n)
	thresholds := make([]float64, n)
	for i := range weights {
		var winMean, lossMean float64
		if wins > 0 {
			winMean = winSums[i] / float64(wins)
		}
		if losses > 0 {
			lossMean = lossSums[i] / float64(losses)
		}
		weights[i] = winMean - lossMean
		thresholds[i] = (minVals[i] + maxVals[i]) / 2
	}

	c.weights = weights
	c.thresholds = thresholds
	c.fittedAt = time.Now()
	c.sampleCount = len(samples)
	return nil
}

// Predict scores features via σ(Σ (x_i − threshold_i) · weight_i · 0.1).
func (c *DiffOfMeansClassifier) Predict(features []float64) (Prediction, error) {
	if !c.IsTrained() {
		return Prediction{}, fmt.Errorf("classifier not trained")
	}
	if len(features) != len(c.weights) {
		return Prediction{}, fmt.Errorf("expected %d features, got %d", len(c.weights), len(features))
	}

	var sum float64
	contributions := make(map[string]float64, len(features))
	for i, x := range features {
		contribution := (x - c.thresholds[i]) * c.weights[i] * 0.1
		contributions[FeatureNames[i]] = contribution
		sum += contribution
	}

	prob := sigmoid(sum)
	return Prediction{
		Probability:          prob,
		PredictedWin:         prob >= 0.5,
		Confidence:           math.Abs(prob-0.5) * 2,
		FeatureContributions: contributions,
	}, nil
}

// IsTrained reports whether Fit has succeeded at least once.
func (c *DiffOfMeansClassifier) IsTrained() bool {
	return len(c.weights) > 0
}

// SampleCount returns how many samples the current fit used.
func (c *DiffOfMeansClassifier) SampleCount() int {
	return c.sampleCount
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ShouldRetrain reports whether totalFinalized new outcomes since the
// last fit warrant a retrain, given cfg.RetrainEvery and the minimum
// sample gate.
func ShouldRetrain(cfg Config, totalFinalized, sampleCountAtLastFit int) bool {
	if totalFinalized < MinTrainingSamples {
		return false
	}
	every := cfg.RetrainEvery
	if every <= 0 {
		every = 1
	}
	return totalFinalized-sampleCountAtLastFit >= every
}
