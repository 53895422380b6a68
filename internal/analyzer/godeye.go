package analyzer

import "math"
import "context"

// GodEyeDetail is the structured output of RunGodEye, one of the source's
// "precision indicators" composite (original_source/god_eye.py and
// precision_indicators.py) — folded into a single analyzer per spec.md
// §4.4 #9.
type GodEyeDetail struct {
	BollingerPosition float64 // 0 = lower band, 1 = upper band
	EMACrossBearish   bool
	ADX               float64
	POCDistancePct    float64
	MomentumDivergence bool
}

const (
	bbPeriod  = 20
	bbStdDevs = 2.0
	adxPeriod = 14
)

// RunGodEye composes Bollinger-band position, 9/21-EMA crossover, ADX
// strength, volume-POC distance, and momentum divergence into a single
// 0-10 composite, each sub-factor nudging the score multiplicatively then
// normalized (spec.md §4.4 #9).
func RunGodEye(ctx context.Context, in Input) Result {
	klines := in.Klines["15m"]
	if len(klines) < bbPeriod+1 {
		return neutral(GodEye)
	}

	closes := closesOf(klines)
	upper, lower, mid := bollingerBands(closes, bbPeriod, bbStdDevs)
	last := closes[len(closes)-1]

	bbPos := 0.5
	if upper > lower {
		bbPos = clamp((last-lower)/(upper-lower), 0, 1)
	}
	_ = mid

	emaCrossBearish := ema(closes, 9) < ema(closes, 21)
	adx := approximateADX(klines, adxPeriod)

	poc := pointOfControl(klines)
	pocDistance := 0.0
	if poc > 0 {
		pocDistance = (last - poc) / poc * 100
	}

	momentumDivergence := detectMomentumDivergence(closes)

	// Start neutral, apply multiplicative nudges for each bearish-favoring
	// sub-factor, then renormalize into [0,10].
	factor := 1.0
	if bbPos >= 0.8 {
		factor *= 1.25 // price pinned to upper band: short favors reversion
	} else if bbPos <= 0.2 {
		factor *= 0.8
	}
	if emaCrossBearish {
		factor *= 1.15
	}
	if adx >= 25 {
		factor *= 1.1 // strong trend raises the score whatever the EMA direction
	}
	if pocDistance > 5 {
		factor *= 1.1 // price extended well above its volume point of control
	}
	if momentumDivergence {
		factor *= 1.2
	}

	score := clamp(NeutralScore*factor, 0, 10)

	return Result{
		Name:  GodEye,
		Score: score,
		Detail: GodEyeDetail{
			BollingerPosition:  bbPos,
			EMACrossBearish:    emaCrossBearish,
			ADX:                adx,
			POCDistancePct:     pocDistance,
			MomentumDivergence: momentumDivergence,
		},
	}
}

func closesOf(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.C
	}
	return out
}

func bollingerBands(closes []float64, period int, stdDevs float64) (upper, lower, mid float64) {
	if len(closes) < period {
		period = len(closes)
	}
	window := closes[len(closes)-period:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var variance float64
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(window))
	sd := math.Sqrt(variance)

	return mean + stdDevs*sd, mean - stdDevs*sd, mean
}

// approximateADX is a simplified directional-movement strength estimate:
// the net bar-to-bar close movement |up-down| over the total movement
// up+down across the last `period` bars, scaled onto a 0-100 range
// comparable to classic ADX.
func approximateADX(klines []Kline, period int) float64 {
	if len(klines) < period+1 {
		period = len(klines) - 1
	}
	if period <= 0 {
		return 0
	}
	window := klines[len(klines)-period-1:]

	var upMove, downMove float64
	for i := 1; i < len(window); i++ {
		diff := window[i].C - window[i-1].C
		if diff > 0 {
			upMove += diff
		} else {
			downMove -= diff
		}
	}
	total := upMove + downMove
	if total == 0 {
		return 0
	}
	directional := math.Abs(upMove-downMove) / total
	return directional * 100
}

// pointOfControl returns the price of the single highest-volume candle's
// midpoint, a cheap proxy for the true volume-profile POC.
func pointOfControl(klines []Kline) float64 {
	if len(klines) == 0 {
		return 0
	}
	best := klines[0]
	for _, k := range klines {
		if k.V > best.V {
			best = k
		}
	}
	return (best.H + best.L) / 2
}

// detectMomentumDivergence flags a simple bearish divergence: price makes a
// higher high over the last window while the rate of change decelerates.
func detectMomentumDivergence(closes []float64) bool {
	if len(closes) < 10 {
		return false
	}
	n := len(closes)
	recentHigh := maxOf(closes[n-5:])
	priorHigh := maxOf(closes[n-10 : n-5])
	recentROC := closes[n-1] - closes[n-5]
	priorROC := closes[n-5] - closes[n-10]

	return recentHigh > priorHigh && recentROC < priorROC
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
