package analyzer

import (
	"context"
	"math"
)

// OrderbookDetail is the structured output of RunOrderbookPressure.
type OrderbookDetail struct {
	BidVolume      map[string]float64 // band pct -> aggregated bid volume
	AskVolume      map[string]float64
	Imbalance      float64 // (asks-bids)/(asks+bids), positive favors short
	Walls          []WallLevel
	SpreadBps      float64
}

// WallLevel flags a large resting order relative to its side's total.
type WallLevel struct {
	Side  string // "bid" or "ask"
	Price float64
	Qty   float64
}

const wallThresholdPct = 0.15 // a level >= 15% of its side's aggregated volume is a wall

var pressureBands = []float64{0.5, 1.0, 2.0, 5.0}

// RunOrderbookPressure computes aggregated bid/ask volume within ±bands of
// the current price, flags walls, and scores bearish pressure higher when
// aggregated bids are thinner than asks (spec.md §4.4 #1).
func RunOrderbookPressure(ctx context.Context, in Input) Result {
	if in.Orderbook == nil || in.EntryPrice <= 0 {
		return neutral(OrderbookPressure)
	}
	ob := in.Orderbook
	mid := in.EntryPrice

	bidVol := make(map[string]float64, len(pressureBands))
	askVol := make(map[string]float64, len(pressureBands))
	var walls []WallLevel

	for _, bandPct := range pressureBands {
		lo := mid * (1 - bandPct/100)
		hi := mid * (1 + bandPct/100)

		var bidTotal, askTotal float64
		for _, l := range ob.Bids {
			if l.Price >= lo && l.Price <= mid {
				bidTotal += l.Qty
			}
		}
		for _, l := range ob.Asks {
			if l.Price <= hi && l.Price >= mid {
				askTotal += l.Qty
			}
		}
		bidVol[bandKey(bandPct)] = bidTotal
		askVol[bandKey(bandPct)] = askTotal
	}

	totalBid, totalAsk := sumQty(ob.Bids), sumQty(ob.Asks)
	for _, l := range ob.Bids {
		if totalBid > 0 && l.Qty/totalBid >= wallThresholdPct {
			walls = append(walls, WallLevel{Side: "bid", Price: l.Price, Qty: l.Qty})
		}
	}
	for _, l := range ob.Asks {
		if totalAsk > 0 && l.Qty/totalAsk >= wallThresholdPct {
			walls = append(walls, WallLevel{Side: "ask", Price: l.Price, Qty: l.Qty})
		}
	}

	imbalance := 0.0
	if totalBid+totalAsk > 0 {
		imbalance = (totalAsk - totalBid) / (totalAsk + totalBid)
	}

	spreadBps := 0.0
	if len(ob.Bids) > 0 && len(ob.Asks) > 0 {
		bestBid, bestAsk := bestPrice(ob.Bids, true), bestPrice(ob.Asks, false)
		if mid > 0 {
			spreadBps = (bestAsk - bestBid) / mid * 10000
		}
	}

	// Bearish pressure (bids thinner than asks) favors short: imbalance in
	// [-1,1] maps linearly onto [0,10], clamped.
	score := clamp(5+imbalance*5, 0, 10)

	return Result{
		Name:  OrderbookPressure,
		Score: score,
		Detail: OrderbookDetail{
			BidVolume: bidVol,
			AskVolume: askVol,
			Imbalance: imbalance,
			Walls:     walls,
			SpreadBps: spreadBps,
		},
	}
}

func bandKey(pct float64) string {
	switch pct {
	case 0.5:
		return "0.5"
	case 1.0:
		return "1"
	case 2.0:
		return "2"
	case 5.0:
		return "5"
	default:
		return "?"
	}
}

func sumQty(levels []Level) float64 {
	var total float64
	for _, l := range levels {
		total += l.Qty
	}
	return total
}

func bestPrice(levels []Level, wantMax bool) float64 {
	if len(levels) == 0 {
		return 0
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if wantMax && l.Price > best {
			best = l.Price
		}
		if !wantMax && l.Price < best {
			best = l.Price
		}
	}
	return best
}

// RunCandleStructure scores the last candle's shape: shooting-star,
// bearish-engulfing, and long-upper-wick patterns favor a short
// (spec.md §4.4 #10).
func RunCandleStructure(ctx context.Context, in Input) Result {
	klines := in.Klines["5m"]
	if len(klines) == 0 {
		return neutral(CandleStructure)
	}
	last := klines[len(klines)-1]

	body := math.Abs(last.C - last.O)
	fullRange := last.H - last.L
	if fullRange <= 0 {
		return neutral(CandleStructure)
	}
	upperWick := last.H - math.Max(last.O, last.C)
	upperWickRatio := upperWick / fullRange
	bodyRatio := body / fullRange

	shootingStar := upperWickRatio >= 0.5 && bodyRatio <= 0.3
	longUpperWick := upperWickRatio >= 0.4

	bearishEngulfing := false
	if len(klines) >= 2 {
		prev := klines[len(klines)-2]
		prevBullish := prev.C > prev.O
		currBearish := last.C < last.O
		bearishEngulfing = prevBullish && currBearish && last.O >= prev.C && last.C <= prev.O
	}

	score := NeutralScore
	switch {
	case shootingStar || bearishEngulfing:
		score = 8.5
	case longUpperWick:
		score = 7.0
	default:
		score = 4.0
	}

	return Result{
		Name:  CandleStructure,
		Score: score,
		Detail: CandleDetail{
			UpperWickRatio:    upperWickRatio,
			BodyRatio:         bodyRatio,
			ShootingStar:      shootingStar,
			BearishEngulfing:  bearishEngulfing,
			LongUpperWick:     longUpperWick,
		},
	}
}

// CandleDetail is the structured output of RunCandleStructure; also read
// directly by the Level Calculator's candle-shape multiplier (spec.md §4.8).
type CandleDetail struct {
	UpperWickRatio   float64
	BodyRatio        float64
	ShootingStar     bool
	BearishEngulfing bool
	LongUpperWick    bool
}
