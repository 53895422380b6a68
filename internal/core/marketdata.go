package core

import (
	"context"
	"time"

	"github.com/sawpanic/pumpshort/internal/analyzer"
	"github.com/sawpanic/pumpshort/internal/exchange"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/snapshotstore"
)

// marketData implements orchestrator.MarketData and outcome.PriceReader
// over a single exchange.Adapter, filling in the analyzer.Input bundle
// from whatever the adapter currently reports.
type marketData struct {
	adapter   exchange.Adapter
	snapshots *snapshotstore.Store
}

// intervals are the five fixed candle widths the analyzer suite consumes
// (spec.md §4.4's multi-timeframe/candle-structure analyzers).
var intervals = []exchange.Interval{
	exchange.Interval1m,
	exchange.Interval5m,
	exchange.Interval15m,
	exchange.Interval1h,
	exchange.Interval4h,
}

const klinesPerInterval = 60

// referenceSymbol is the asset Analyzer #5 (BTCCorrelation) compares
// every symbol's pump against.
const referenceSymbol = exchange.Symbol("BTCUSDT")

// peerCount caps how many peer symbols Analyzer #8 (CrossPair) considers
// (spec.md §4.4 #8 names "up to five").
const peerCount = 5

// hoursIn24h is how many 1h candles back the comparison bar sits; the
// klinesPerInterval (60) bars requested leave room for it, and
// change24hPct reports ok=false when fewer than hoursIn24h+1 arrive.
const hoursIn24h = 24

func (m *marketData) Price(ctx context.Context, symbol string) (float64, error) {
	if snap, ok := m.snapshots.Latest(symbol); ok {
		return snap.Price, nil
	}
	tickers, err := m.adapter.BatchTicker(ctx)
	if err != nil {
		return 0, err
	}
	return tickers[exchange.Symbol(symbol)].LastPrice, nil
}

func (m *marketData) AnalyzerInput(ctx context.Context, symbol string, event pumpdetector.PumpEvent, entryPrice float64, now time.Time) (analyzer.Input, error) {
	in := analyzer.Input{
		Symbol:     symbol,
		PumpPct:    event.PumpPct,
		ElapsedMin: event.ElapsedMinutes,
		EntryPrice: entryPrice,
		PeakPrice:  event.PricePeak,
		StartPrice: event.PriceStart,
		Now:        now,
		Klines:     make(map[string][]analyzer.Kline, len(intervals)),
	}

	for _, interval := range intervals {
		candles, err := m.adapter.Klines(ctx, exchange.Symbol(symbol), interval, klinesPerInterval)
		if err != nil {
			continue
		}
		in.Klines[string(interval)] = convertKlines(candles)
	}

	if ob, err := m.adapter.OrderbookDepth(ctx, exchange.Symbol(symbol), 50); err == nil {
		in.Orderbook = &analyzer.Orderbook{Bids: convertLevels(ob.Bids), Asks: convertLevels(ob.Asks)}
	}
	if funding, err := m.adapter.FundingRate(ctx, exchange.Symbol(symbol)); err == nil {
		in.Funding = &analyzer.Funding{RatePct: funding.RatePct, NextTS: funding.NextTS}
	}
	if oi, err := m.adapter.OpenInterest(ctx, exchange.Symbol(symbol)); err == nil {
		in.OI = &analyzer.OpenInterest{Contracts: oi.Contracts, ContractSize: oi.ContractSize, AsOf: now}
	}

	if candles, err := m.adapter.Klines(ctx, referenceSymbol, exchange.Interval1h, klinesPerInterval); err == nil {
		if pct, ok := change24hPct(candles); ok {
			in.BTC24hPct = pct
		}
	}

	if symbols, err := m.adapter.ListSymbols(ctx); err == nil {
		in.Peers = m.peerChanges(ctx, symbol, symbols)
	}

	return in, nil
}

// change24hPct derives a 24h percent change from ascending-order hourly
// candles (oldest first): the comparison bar is the close 24 bars behind
// the most recent one. Returns ok=false when there isn't enough history,
// leaving the caller's zero-value default in place (spec.md §4.4's
// neutral-score-on-missing-data rule).
func change24hPct(candles []exchange.Kline) (float64, bool) {
	if len(candles) <= hoursIn24h {
		return 0, false
	}
	latest := candles[len(candles)-1]
	prior := candles[len(candles)-1-hoursIn24h]
	if prior.Close == 0 {
		return 0, false
	}
	return (latest.Close - prior.Close) / prior.Close * 100, true
}

// peerChanges fetches up to peerCount other symbols' 24h change for
// Analyzer #8 (CrossPair), skipping the symbol under analysis and the
// BTCCorrelation reference asset. Per-peer fetch failures are skipped
// rather than failing the whole call.
func (m *marketData) peerChanges(ctx context.Context, symbol string, symbols []exchange.Symbol) []analyzer.PeerChange {
	peers := make([]analyzer.PeerChange, 0, peerCount)
	for _, s := range symbols {
		if len(peers) >= peerCount {
			break
		}
		if string(s) == symbol || s == referenceSymbol {
			continue
		}
		candles, err := m.adapter.Klines(ctx, s, exchange.Interval1h, klinesPerInterval)
		if err != nil {
			continue
		}
		pct, ok := change24hPct(candles)
		if !ok {
			continue
		}
		peers = append(peers, analyzer.PeerChange{Symbol: string(s), Change24h: pct})
	}
	return peers
}

func convertKlines(in []exchange.Kline) []analyzer.Kline {
	out := make([]analyzer.Kline, len(in))
	for i, k := range in {
		out[i] = analyzer.Kline{T: k.T, O: k.Open, H: k.High, L: k.Low, C: k.Close, V: k.Volume}
	}
	return out
}

func convertLevels(in []exchange.Level) []analyzer.Level {
	out := make([]analyzer.Level, len(in))
	for i, l := range in {
		out[i] = analyzer.Level{Price: l.Price, Qty: l.Qty}
	}
	return out
}
