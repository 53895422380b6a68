// Package analyzer implements the ten independent scoring functions of
// spec.md §4.4, fanned out concurrently and joined with a deadline. Every
// analyzer returns a neutral (5.0, nil detail) result on missing data or
// timeout — callers never have to special-case a missing value.
package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Name identifies one of the fixed ten analyzers.
type Name string

const (
	OrderbookPressure  Name = "orderbook_pressure"
	OpenInterestDelta  Name = "open_interest_delta"
	FundingRate        Name = "funding_rate"
	LiquidationHeatmap Name = "liquidation_heatmap"
	BTCCorrelation     Name = "btc_correlation"
	MultiTimeframe     Name = "multi_timeframe"
	VolumeProfile      Name = "volume_profile"
	CrossPair          Name = "cross_pair"
	GodEye             Name = "god_eye"
	CandleStructure    Name = "candle_structure"
)

// NeutralScore is returned whenever an analyzer cannot form an opinion.
const NeutralScore = 5.0

// DefaultTimeout bounds every individual analyzer call (spec.md §4.4).
const DefaultTimeout = 3 * time.Second

// Result is the fixed record every analyzer produces. Detail holds the
// producing analyzer's own detail struct (e.g. FundingDetail), or nil on a
// neutral result; consumers that care about structure type-assert on the
// concrete detail type documented by each analyzer file.
type Result struct {
	Name   Name
	Score  float64
	Detail any
	TimedOut bool
}

// Input bundles everything an analyzer might need. Every field may be the
// zero value; analyzers must tolerate missing data per spec.md §4.4.
type Input struct {
	Symbol     string
	PumpPct    float64
	ElapsedMin float64
	EntryPrice float64
	PeakPrice  float64
	StartPrice float64

	Klines    map[string][]Kline // keyed by interval: "1m","5m","15m","1h","4h"
	Orderbook *Orderbook
	Funding   *Funding
	OI        *OpenInterest
	OIDeltaPct *float64 // OI change over the last oi_lookback_min, if sampled
	BTC24hPct float64 // reference asset 24h change
	Peers     []PeerChange
	Now       time.Time
}

// Kline is one OHLCV candle.
type Kline struct {
	T      time.Time
	O, H, L, C, V float64
}

// Orderbook is a depth snapshot.
type Orderbook struct {
	Bids []Level
	Asks []Level
}

// Level is one price/quantity rung of an orderbook.
type Level struct {
	Price float64
	Qty   float64
}

// Funding is the current funding-rate reading.
type Funding struct {
	RatePct float64
	NextTS  time.Time
}

// OpenInterest is a point-in-time open-interest reading.
type OpenInterest struct {
	Contracts    float64
	ContractSize float64
	AsOf         time.Time
}

// PeerChange is one peer symbol's 24h change, used by CrossPair.
type PeerChange struct {
	Symbol    string
	Change24h float64
}

// Func is the signature every analyzer implements.
type Func func(ctx context.Context, in Input) Result

// Suite is the fixed roster of ten analyzers, invoked in parallel.
type Suite struct {
	analyzers map[Name]Func
	timeout   time.Duration
	log       zerolog.Logger
}

// NewSuite builds the suite with the default roster (spec.md §4.4 #1-10).
func NewSuite(log zerolog.Logger) *Suite {
	return &Suite{
		analyzers: map[Name]Func{
			OrderbookPressure:  RunOrderbookPressure,
			OpenInterestDelta:  RunOpenInterestDelta,
			FundingRate:        RunFundingRate,
			LiquidationHeatmap: RunLiquidationHeatmap,
			BTCCorrelation:     RunBTCCorrelation,
			MultiTimeframe:     RunMultiTimeframe,
			VolumeProfile:      RunVolumeProfile,
			CrossPair:          RunCrossPair,
			GodEye:             RunGodEye,
			CandleStructure:    RunCandleStructure,
		},
		timeout: DefaultTimeout,
		log:     log,
	}
}

// Run fans out all ten analyzers concurrently and joins with the suite's
// deadline. A late analyzer's result is discarded and replaced with the
// neutral sentinel.
func (s *Suite) Run(ctx context.Context, in Input) map[Name]Result {
	results := make(map[Name]Result, len(s.analyzers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, fn := range s.analyzers {
		name, fn := name, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.runOne(ctx, name, fn, in)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (s *Suite) runOne(ctx context.Context, name Name, fn Func, in Input) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("analyzer", string(name)).Interface("panic", r).Msg("analyzer panicked")
				done <- Result{Name: name, Score: NeutralScore}
			}
		}()
		done <- fn(ctx, in)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		s.log.Warn().Str("analyzer", string(name)).Msg("analyzer timed out, using neutral score")
		return Result{Name: name, Score: NeutralScore, TimedOut: true}
	}
}

func neutral(name Name) Result {
	return Result{Name: name, Score: NeutralScore}
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
