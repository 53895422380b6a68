package analyzer

import "context"

// PriceZone is a volume-bucketed price level.
type PriceZone struct {
	Price      float64
	Volume     float64
	Resistance bool // above current price with volume >= 1.5x mean
	Support    bool // below current price with volume >= 1.5x mean
}

// VolumeProfileDetail is the structured output of RunVolumeProfile.
type VolumeProfileDetail struct {
	Zones            []PriceZone
	ResistanceCount  int
	SupportCount     int
}

const volumeZoneMultiple = 1.5

// RunVolumeProfile buckets 24h of hourly candles into price levels (volume
// spread uniformly across each candle's high-low range), marks zones with
// volume >= 1.5x the mean as support/resistance, and scores higher when
// resistance outnumbers support (spec.md §4.4 #7).
func RunVolumeProfile(ctx context.Context, in Input) Result {
	klines := in.Klines["1h"]
	if len(klines) == 0 || in.EntryPrice <= 0 {
		return neutral(VolumeProfile)
	}
	if len(klines) > 24 {
		klines = klines[len(klines)-24:]
	}

	const buckets = 20
	lo, hi := klines[0].L, klines[0].H
	for _, k := range klines {
		if k.L < lo {
			lo = k.L
		}
		if k.H > hi {
			hi = k.H
		}
	}
	if hi <= lo {
		return neutral(VolumeProfile)
	}
	bucketSize := (hi - lo) / buckets

	volumes := make([]float64, buckets)
	for _, k := range klines {
		if k.H <= k.L {
			continue
		}
		startBucket := int((k.L - lo) / bucketSize)
		endBucket := int((k.H - lo) / bucketSize)
		if endBucket >= buckets {
			endBucket = buckets - 1
		}
		span := endBucket - startBucket + 1
		if span <= 0 {
			span = 1
		}
		perBucket := k.V / float64(span)
		for b := startBucket; b <= endBucket && b < buckets; b++ {
			if b < 0 {
				continue
			}
			volumes[b] += perBucket
		}
	}

	var total float64
	for _, v := range volumes {
		total += v
	}
	mean := total / buckets

	var zones []PriceZone
	resistance, support := 0, 0
	for b, v := range volumes {
		if v < mean*volumeZoneMultiple {
			continue
		}
		price := lo + bucketSize*(float64(b)+0.5)
		zone := PriceZone{Price: price, Volume: v}
		if price > in.EntryPrice {
			zone.Resistance = true
			resistance++
		} else {
			zone.Support = true
			support++
		}
		zones = append(zones, zone)
	}

	score := NeutralScore
	if resistance+support > 0 {
		score = clamp(5+float64(resistance-support), 0, 10)
	}

	return Result{
		Name:  VolumeProfile,
		Score: score,
		Detail: VolumeProfileDetail{
			Zones:           zones,
			ResistanceCount: resistance,
			SupportCount:    support,
		},
	}
}
