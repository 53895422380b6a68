// Package exchange defines the external market-data adapter surface of
// spec.md §6: everything the core consumes from an exchange, kept
// abstract so a concrete adapter (internal/exchange/kraken) can be
// swapped or mocked without touching detection/scoring logic.
package exchange

import (
	"context"
	"time"
)

// Symbol is a perpetual-futures instrument identifier, e.g. "BTCUSDT".
type Symbol string

// Ticker is one symbol's latest price/volume reading.
type Ticker struct {
	LastPrice  float64
	Volume24h  float64
	TimestampMs int64
}

// Kline is one OHLCV candle for a given interval.
type Kline struct {
	T                      time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

// Interval is one of the five fixed candle widths spec.md §6 names.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
)

// Level is one price/quantity rung of an order book.
type Level struct {
	Price float64
	Qty   float64
}

// Orderbook is a depth snapshot.
type Orderbook struct {
	Bids []Level
	Asks []Level
}

// Funding is the current funding-rate reading for a perpetual.
type Funding struct {
	RatePct float64
	NextTS  time.Time
}

// OpenInterest is a point-in-time open-interest reading.
type OpenInterest struct {
	Contracts    float64
	ContractSize float64
}

// Adapter is the full external-interface set spec.md §6 names. One
// concrete adapter exists per exchange.
type Adapter interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
	BatchTicker(ctx context.Context) (map[Symbol]Ticker, error)
	Klines(ctx context.Context, symbol Symbol, interval Interval, limit int) ([]Kline, error)
	OrderbookDepth(ctx context.Context, symbol Symbol, limit int) (Orderbook, error)
	FundingRate(ctx context.Context, symbol Symbol) (Funding, error)
	OpenInterest(ctx context.Context, symbol Symbol) (OpenInterest, error)
}

// TradeStream is the push-side complement to Adapter: a live trade feed
// an exchange adapter may optionally expose to drive the Snapshot Store
// without polling BatchTicker on every tick.
type TradeStream interface {
	// Subscribe starts streaming trades for symbols onto the returned
	// channel until ctx is cancelled or the stream errors.
	Subscribe(ctx context.Context, symbols []Symbol) (<-chan Trade, error)
}

// Trade is one executed trade pushed by a TradeStream.
type Trade struct {
	Symbol Symbol
	Price  float64
	Qty    float64
	Time   time.Time
}
