package analyzer

import (
	"context"
	"math"
	"sort"
)

// RunOpenInterestDelta scores the change in open interest over the last
// lookback window: both rising OI (shorts being liquidated, peak is near)
// and falling OI (longs unwinding) favor a short; flat/contrary OI does not
// (spec.md §4.4 #2).
const oiLookbackMin = 5.0

func RunOpenInterestDelta(ctx context.Context, in Input) Result {
	if in.OI == nil || in.OIDeltaPct == nil {
		return neutral(OpenInterestDelta)
	}
	delta := *in.OIDeltaPct
	return Result{Name: OpenInterestDelta, Score: ScoreOIDelta(delta), Detail: OIDeltaDetail{
		ContractsNow: in.OI.Contracts,
		DeltaPct:     delta,
		LookbackMin:  oiLookbackMin,
	}}
}

// OIDeltaDetail is the structured output of RunOpenInterestDelta.
type OIDeltaDetail struct {
	ContractsNow float64
	DeltaPct     float64
	LookbackMin  float64
}

// ScoreOIDelta is the pure scoring rule used once an actual delta is known
// (exposed separately so an adapter supplying historical OI can call it
// directly instead of threading history through Input).
func ScoreOIDelta(deltaPct float64) float64 {
	abs := math.Abs(deltaPct)
	switch {
	case abs < 2:
		return 3.0
	case abs < 5:
		return 6.0
	default:
		return 9.0
	}
}

// RunFundingRate maps the current funding rate onto a piecewise-linear
// short-favorability score (spec.md §4.4 #3).
func RunFundingRate(ctx context.Context, in Input) Result {
	if in.Funding == nil {
		return neutral(FundingRate)
	}
	rate := in.Funding.RatePct
	score := scoreFunding(rate)
	return Result{Name: FundingRate, Score: score, Detail: FundingDetail{RatePct: rate}}
}

// FundingDetail is the structured output of RunFundingRate.
type FundingDetail struct {
	RatePct float64
}

func scoreFunding(ratePct float64) float64 {
	switch {
	case ratePct <= 0:
		return 0
	case ratePct <= 0.01:
		return lerp(ratePct, 0, 0.01, 0, 2)
	case ratePct <= 0.05:
		return lerp(ratePct, 0.01, 0.05, 2, 5)
	case ratePct <= 0.10:
		return lerp(ratePct, 0.05, 0.10, 5, 7)
	case ratePct <= 0.20:
		return lerp(ratePct, 0.10, 0.20, 7, 10)
	default:
		return 10
	}
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// RunLiquidationHeatmap computes implied liquidation zones for hypothetical
// longs entered during the pump run-up and shorts entered at the peak, then
// scores higher when the pump already swept upside liquidity and when
// long-liquidation levels cluster below the current price (spec.md §4.4 #4).
var heatmapLeverages = []float64{5, 10, 20, 50, 100}

func RunLiquidationHeatmap(ctx context.Context, in Input) Result {
	if in.StartPrice <= 0 || in.PeakPrice <= 0 || in.EntryPrice <= 0 {
		return neutral(LiquidationHeatmap)
	}

	avgLongEntry := (in.StartPrice + in.PeakPrice) / 2
	shortEntry := in.PeakPrice

	var longZones, shortZones []LiqZone
	for _, lev := range heatmapLeverages {
		longLiq := avgLongEntry * (1 - 1/lev)
		shortLiq := shortEntry * (1 + 1/lev)
		longZones = append(longZones, LiqZone{Leverage: lev, Price: longLiq})
		shortZones = append(shortZones, LiqZone{Leverage: lev, Price: shortLiq})
	}
	sort.Slice(longZones, func(i, j int) bool { return longZones[i].Price > longZones[j].Price })
	sort.Slice(shortZones, func(i, j int) bool { return shortZones[i].Price < shortZones[j].Price })

	sweepEvidence := in.PumpPct >= 10

	// cluster density: count long-liq zones within 5% below current price.
	clustered := 0
	for _, z := range longZones {
		if z.Price < in.EntryPrice && (in.EntryPrice-z.Price)/in.EntryPrice*100 <= 5 {
			clustered++
		}
	}

	score := NeutralScore - 1
	if sweepEvidence {
		score += 2
	}
	score += float64(clustered)
	score = clamp(score, 0, 10)

	return Result{
		Name:  LiquidationHeatmap,
		Score: score,
		Detail: LiquidationDetail{
			LongZones:  longZones,
			ShortZones: shortZones,
			Clustered:  clustered,
		},
	}
}

// LiqZone is one leverage tier's implied liquidation price.
type LiqZone struct {
	Leverage float64
	Price    float64
}

// LiquidationDetail is the structured output of RunLiquidationHeatmap; also
// consumed by the Level Calculator's liquidation-overlay blend.
type LiquidationDetail struct {
	LongZones  []LiqZone
	ShortZones []LiqZone
	Clustered  int
}
