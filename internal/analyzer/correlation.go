package analyzer

import "context"

// RunBTCCorrelation scores by the reference asset's 24h direction: a
// dumping reference favors short, a rising one argues against it
// (spec.md §4.4 #5).
func RunBTCCorrelation(ctx context.Context, in Input) Result {
	change := in.BTC24hPct
	var score float64
	switch {
	case change <= -3:
		score = 9
	case change >= 3:
		score = 2
	default:
		// linear interpolation between the two anchors through neutral
		score = lerp(change, -3, 3, 9, 2)
	}
	return Result{Name: BTCCorrelation, Score: clamp(score, 0, 10), Detail: BTCCorrelationDetail{Change24hPct: change}}
}

// BTCCorrelationDetail is the structured output of RunBTCCorrelation.
type BTCCorrelationDetail struct {
	Change24hPct float64
}

// RunCrossPair scores by how many of the first five supplied peers
// (in.Peers) are dumping vs pumping over 24h (spec.md §4.4 #8). Peers are
// taken as given; they are not grouped or filtered by sector.
func RunCrossPair(ctx context.Context, in Input) Result {
	if len(in.Peers) == 0 {
		return neutral(CrossPair)
	}

	peers := in.Peers
	if len(peers) > 5 {
		peers = peers[:5]
	}

	dumping, pumping := 0, 0
	for _, p := range peers {
		if p.Change24h <= -3 {
			dumping++
		}
		if p.Change24h >= 3 {
			pumping++
		}
	}

	score := NeutralScore
	switch {
	case dumping >= 3:
		score = 8.5
	case pumping >= 3:
		score = 2.5
	}

	return Result{
		Name:  CrossPair,
		Score: score,
		Detail: CrossPairDetail{
			PeersConsidered: len(peers),
			Dumping:         dumping,
			Pumping:         pumping,
		},
	}
}

// CrossPairDetail is the structured output of RunCrossPair.
type CrossPairDetail struct {
	PeersConsidered int
	Dumping         int
	Pumping         int
}
