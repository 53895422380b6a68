package analyzer

import "context"

// TrendLabel is a per-interval trend classification.
type TrendLabel string

const (
	TrendUp       TrendLabel = "UP"
	TrendDown     TrendLabel = "DOWN"
	TrendSideways TrendLabel = "SIDEWAYS"
	TrendUnknown  TrendLabel = "UNKNOWN"
)

// Aggregate is the fused multi-timeframe verdict.
type Aggregate string

const (
	StrongShort Aggregate = "STRONG_SHORT"
	WeakShort   Aggregate = "WEAK_SHORT"
	Neutral     Aggregate = "NEUTRAL"
	AvoidShort  Aggregate = "AVOID_SHORT"
)

var timeframeWeights = map[string]float64{
	"5m":  0.15,
	"15m": 0.25,
	"1h":  0.35,
	"4h":  0.25,
}

const (
	emaFast   = 8
	emaSlow   = 21
	momentumN = 10
)

// MultiTimeframeDetail is the structured output of RunMultiTimeframe.
type MultiTimeframeDetail struct {
	Trends     map[string]TrendLabel
	Aggregate  Aggregate
}

// RunMultiTimeframe computes an EMA-crossover + momentum trend label on
// four intervals and fuses them with fixed weights (spec.md §4.4 #6).
func RunMultiTimeframe(ctx context.Context, in Input) Result {
	trends := make(map[string]TrendLabel, len(timeframeWeights))
	haveAny := false

	var shortWeight, longWeight float64
	for interval, weight := range timeframeWeights {
		klines := in.Klines[interval]
		label := trendLabel(klines)
		trends[interval] = label
		if label == TrendUnknown {
			continue
		}
		haveAny = true
		switch label {
		case TrendDown:
			shortWeight += weight
		case TrendUp:
			longWeight += weight
		}
	}

	if !haveAny {
		return neutral(MultiTimeframe)
	}

	var agg Aggregate
	var score float64
	switch {
	case shortWeight >= 0.6:
		agg, score = StrongShort, 9
	case shortWeight >= 0.3:
		agg, score = WeakShort, 7
	case longWeight >= 0.5:
		agg, score = AvoidShort, 1.5
	default:
		agg, score = Neutral, 5
	}

	return Result{
		Name:  MultiTimeframe,
		Score: score,
		Detail: MultiTimeframeDetail{
			Trends:    trends,
			Aggregate: agg,
		},
	}
}

func trendLabel(klines []Kline) TrendLabel {
	if len(klines) < emaSlow+1 {
		return TrendUnknown
	}
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.C
	}

	fast := ema(closes, emaFast)
	slow := ema(closes, emaSlow)

	momentum := 0.0
	if len(closes) > momentumN {
		momentum = closes[len(closes)-1] - closes[len(closes)-1-momentumN]
	}

	switch {
	case fast > slow && momentum >= 0:
		return TrendUp
	case fast < slow && momentum <= 0:
		return TrendDown
	default:
		return TrendSideways
	}
}

// ema computes an exponential moving average over the last `period`
// effective samples, seeded with a simple average of the first `period`
// values.
func ema(values []float64, period int) float64 {
	if len(values) < period {
		period = len(values)
	}
	if period == 0 {
		return 0
	}

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	avg := sum / float64(period)

	alpha := 2.0 / float64(period+1)
	result := avg
	for _, v := range values[period:] {
		result = alpha*v + (1-alpha)*result
	}
	return result
}
