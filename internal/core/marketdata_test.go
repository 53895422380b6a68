package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/exchange"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/snapshotstore"
)

type fakeAdapter struct {
	tickers        map[exchange.Symbol]exchange.Ticker
	klines         []exchange.Kline
	klinesBySymbol map[exchange.Symbol][]exchange.Kline
	symbols        []exchange.Symbol
	orderbook      exchange.Orderbook
	funding        exchange.Funding
	oi             exchange.OpenInterest
	err            error
}

func (f *fakeAdapter) ListSymbols(ctx context.Context) ([]exchange.Symbol, error) {
	return f.symbols, f.err
}

func (f *fakeAdapter) BatchTicker(ctx context.Context) (map[exchange.Symbol]exchange.Ticker, error) {
	return f.tickers, f.err
}

func (f *fakeAdapter) Klines(ctx context.Context, symbol exchange.Symbol, interval exchange.Interval, limit int) ([]exchange.Kline, error) {
	if f.klinesBySymbol != nil {
		if candles, ok := f.klinesBySymbol[symbol]; ok {
			return candles, nil
		}
	}
	return f.klines, f.err
}

func (f *fakeAdapter) OrderbookDepth(ctx context.Context, symbol exchange.Symbol, limit int) (exchange.Orderbook, error) {
	return f.orderbook, f.err
}

func (f *fakeAdapter) FundingRate(ctx context.Context, symbol exchange.Symbol) (exchange.Funding, error) {
	return f.funding, f.err
}

func (f *fakeAdapter) OpenInterest(ctx context.Context, symbol exchange.Symbol) (exchange.OpenInterest, error) {
	return f.oi, f.err
}

func TestMarketDataPricePrefersSnapshotOverAdapter(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	snaps.Insert("BTCUSDT", snapshotstore.Snapshot{Timestamp: time.Now(), Price: 123})
	md := &marketData{adapter: &fakeAdapter{}, snapshots: snaps}

	price, err := md.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 123.0, price)
}

func TestMarketDataPriceFallsBackToAdapter(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	adapter := &fakeAdapter{tickers: map[exchange.Symbol]exchange.Ticker{"ETHUSDT": {LastPrice: 50}}}
	md := &marketData{adapter: adapter, snapshots: snaps}

	price, err := md.Price(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)
}

func TestAnalyzerInputFillsFromAdapter(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	adapter := &fakeAdapter{
		klines:    []exchange.Kline{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, T: time.Now()}},
		orderbook: exchange.Orderbook{Bids: []exchange.Level{{Price: 1, Qty: 2}}},
		funding:   exchange.Funding{RatePct: 0.01},
		oi:        exchange.OpenInterest{Contracts: 100},
	}
	md := &marketData{adapter: adapter, snapshots: snaps}

	event := pumpdetector.PumpEvent{Symbol: "BTCUSDT", Kind: pumpdetector.KindFast, PumpPct: 12, PricePeak: 110, PriceStart: 100}
	in, err := md.AnalyzerInput(context.Background(), "BTCUSDT", event, 105, time.Now())
	require.NoError(t, err)

	assert.Len(t, in.Klines["1m"], 1)
	require.NotNil(t, in.Orderbook)
	assert.Len(t, in.Orderbook.Bids, 1)
	require.NotNil(t, in.Funding)
	assert.Equal(t, 0.01, in.Funding.RatePct)
	require.NotNil(t, in.OI)
	assert.Equal(t, 100.0, in.OI.Contracts)
	assert.Equal(t, 12.0, in.PumpPct)
}

func TestAnalyzerInputToleratesAdapterErrors(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	adapter := &fakeAdapter{err: assertErr}
	md := &marketData{adapter: adapter, snapshots: snaps}

	event := pumpdetector.PumpEvent{Symbol: "BTCUSDT", Kind: pumpdetector.KindFast}
	in, err := md.AnalyzerInput(context.Background(), "BTCUSDT", event, 100, time.Now())
	require.NoError(t, err)

	assert.Nil(t, in.Orderbook)
	assert.Nil(t, in.Funding)
	assert.Nil(t, in.OI)
	assert.Empty(t, in.Klines["1m"])
}

// hourlySeries builds an ascending-order 1h candle series whose close
// moves from start to end over hoursIn24h+1 bars, the least history
// change24hPct accepts.
func hourlySeries(start, end float64) []exchange.Kline {
	candles := make([]exchange.Kline, hoursIn24h+1)
	now := time.Now()
	for i := range candles {
		frac := float64(i) / float64(hoursIn24h)
		candles[i] = exchange.Kline{
			T:     now.Add(time.Duration(i-hoursIn24h) * time.Hour),
			Close: start + frac*(end-start),
		}
	}
	return candles
}

func TestAnalyzerInputComputesBTC24hPctFromKlines(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	adapter := &fakeAdapter{
		klinesBySymbol: map[exchange.Symbol][]exchange.Kline{
			referenceSymbol: hourlySeries(100, 90), // -10% over 24h
		},
	}
	md := &marketData{adapter: adapter, snapshots: snaps}

	event := pumpdetector.PumpEvent{Symbol: "ETHUSDT", Kind: pumpdetector.KindFast}
	in, err := md.AnalyzerInput(context.Background(), "ETHUSDT", event, 100, time.Now())
	require.NoError(t, err)

	assert.InDelta(t, -10.0, in.BTC24hPct, 0.01)
}

func TestAnalyzerInputComputesPeerChanges(t *testing.T) {
	snaps := snapshotstore.New(snapshotstore.DefaultConfig())
	adapter := &fakeAdapter{
		symbols: []exchange.Symbol{"ETHUSDT", "SOLUSDT", referenceSymbol},
		klinesBySymbol: map[exchange.Symbol][]exchange.Kline{
			"SOLUSDT": hourlySeries(100, 105), // +5% over 24h
		},
	}
	md := &marketData{adapter: adapter, snapshots: snaps}

	event := pumpdetector.PumpEvent{Symbol: "ETHUSDT", Kind: pumpdetector.KindFast}
	in, err := md.AnalyzerInput(context.Background(), "ETHUSDT", event, 100, time.Now())
	require.NoError(t, err)

	require.Len(t, in.Peers, 1)
	assert.Equal(t, "SOLUSDT", in.Peers[0].Symbol)
	assert.InDelta(t, 5.0, in.Peers[0].Change24h, 0.01)
}

func TestChange24hPctRequiresEnoughHistory(t *testing.T) {
	_, ok := change24hPct([]exchange.Kline{{Close: 100}})
	assert.False(t, ok)
}

type testError struct{}

func (testError) Error() string { return "boom" }

var assertErr = testError{}
