// Package pumpdetector implements the pure pump-detection function of
// spec.md §4.2: given a symbol's snapshot series and the current time, it
// decides whether a FAST or ELITE pump is underway.
package pumpdetector

import (
	"time"

	"github.com/sawpanic/pumpshort/internal/snapshotstore"
)

// Kind distinguishes the two detection windows. FAST outranks ELITE on tie.
type Kind int

const (
	KindNone Kind = iota
	KindFast
	KindElite
)

func (k Kind) String() string {
	switch k {
	case KindFast:
		return "FAST"
	case KindElite:
		return "ELITE"
	default:
		return "NONE"
	}
}

// window holds the fixed parameters for one detection kind.
type window struct {
	kind      Kind
	duration  time.Duration
	threshold float64 // percent rise required
}

var windows = []window{
	{KindFast, 5 * time.Minute, 10.0},
	{KindElite, 20 * time.Minute, 20.0},
}

const (
	stalePeakAge    = 3 * time.Minute
	staleDropFloor  = 1.5 // percent
	minElapsedFloor = 1 * time.Second
)

// PumpEvent describes a detected pump candidate.
type PumpEvent struct {
	Symbol         string
	Kind           Kind
	PumpPct        float64
	ElapsedMinutes float64
	PriceStart     float64
	PricePeak      float64
	CurrentPrice   float64
	DetectedAt     time.Time
}

// candidate is an internal scratch result per window before the tie-break
// and staleness filter are applied.
type candidate struct {
	kind     Kind
	rise     float64
	start    snapshotstore.Snapshot
	peak     snapshotstore.Snapshot
	current  snapshotstore.Snapshot
	elapsed  time.Duration
	hasPrice bool
}

// Detect is a pure function over the series; it never mutates the store.
// The caller supplies `now` and the window-bounded series slices via the
// store so tests can feed synthetic series without wall-clock dependence.
func Detect(symbol string, recentFast, recentElite []snapshotstore.Snapshot, now time.Time) *PumpEvent {
	var best *candidate

	for _, w := range windows {
		var slice []snapshotstore.Snapshot
		switch w.kind {
		case KindFast:
			slice = recentFast
		case KindElite:
			slice = recentElite
		}
		if len(slice) == 0 {
			continue
		}

		c := evaluateWindow(w, slice)
		if c == nil {
			continue
		}

		// Tie-break: FAST wins over ELITE. windows is ordered FAST-first,
		// so the first qualifying candidate with the lowest Kind value wins.
		if best == nil || c.kind < best.kind {
			best = c
		}
	}

	if best == nil {
		return nil
	}

	current := best.current
	peakAge := now.Sub(best.peak.Timestamp)
	dropFromPeak := 0.0
	if best.peak.Price != 0 {
		dropFromPeak = (best.peak.Price - current.Price) / best.peak.Price * 100
	}
	if peakAge > stalePeakAge && dropFromPeak < staleDropFloor {
		return nil
	}

	elapsed := best.elapsed
	if elapsed < minElapsedFloor {
		elapsed = minElapsedFloor
	}

	return &PumpEvent{
		Symbol:         symbol,
		Kind:           best.kind,
		PumpPct:        best.rise,
		ElapsedMinutes: elapsed.Minutes(),
		PriceStart:     best.start.Price,
		PricePeak:      best.peak.Price,
		CurrentPrice:   current.Price,
		DetectedAt:     now,
	}
}

func evaluateWindow(w window, slice []snapshotstore.Snapshot) *candidate {
	start := slice[0]
	peak := slice[0]
	for _, s := range slice {
		if s.Price < start.Price {
			start = s
		}
		if s.Price > peak.Price {
			peak = s
		}
	}

	if start.Price <= 0 {
		return nil
	}
	rise := (peak.Price - start.Price) / start.Price * 100
	if rise < w.threshold {
		return nil
	}

	elapsed := peak.Timestamp.Sub(start.Timestamp)
	if elapsed < 0 {
		elapsed = 0
	}

	return &candidate{
		kind:    w.kind,
		rise:    rise,
		start:   start,
		peak:    peak,
		current: slice[len(slice)-1],
		elapsed: elapsed,
	}
}
