package memory

import (
	"context"
	"fmt"
)

const (
	defaultSimilarityPumpBand  = similarityPumpBand
	defaultSimilarityScoreBand = similarityScoreBand
	defaultSimilarityLimit     = 50
)

// Store wraps a Repository with the derived-intelligence and overlay
// operations the rest of the system calls (spec.md §4.6). It holds no
// state of its own: every call is a thin pass-through plus pure-function
// derivation, keeping DeriveCoinIntelligence and ApplySmartOverlay testable
// without a database.
type Store struct {
	repo Repository
}

// NewStore wraps repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// RecordSignal persists a newly emitted signal (spec.md §4.6.1 step 1).
func (s *Store) RecordSignal(ctx context.Context, row SignalRow) (string, error) {
	id, err := s.repo.RecordSignal(ctx, row)
	if err != nil {
		return "", fmt.Errorf("record signal: %w", err)
	}
	return id, nil
}

// UpdateOutcome applies an Outcome Tracker sample or final classification
// to a previously recorded signal (spec.md §4.6.1 step 2, §4.7).
func (s *Store) UpdateOutcome(ctx context.Context, id string, upd OutcomeUpdate) error {
	if err := s.repo.UpdateOutcome(ctx, id, upd); err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

// Intelligence loads a symbol's rows and derives its CoinIntelligence
// (spec.md §4.6.2).
func (s *Store) Intelligence(ctx context.Context, symbol string) (CoinIntelligence, error) {
	rows, err := s.repo.RowsForSymbol(ctx, symbol)
	if err != nil {
		return CoinIntelligence{}, fmt.Errorf("rows for symbol: %w", err)
	}
	return DeriveCoinIntelligence(symbol, rows), nil
}

// Overlay derives the symbol's CoinIntelligence and applies the smart
// prediction overlay for a candidate signal (spec.md §4.6.3).
func (s *Store) Overlay(ctx context.Context, symbol string, in OverlayInput) (OverlayResult, error) {
	ci, err := s.Intelligence(ctx, symbol)
	if err != nil {
		return OverlayResult{}, err
	}

	similar, err := s.repo.SimilarSignals(ctx, in.PumpPct, in.CombinedScore, defaultSimilarityPumpBand, defaultSimilarityScoreBand, defaultSimilarityLimit)
	if err != nil {
		return OverlayResult{}, fmt.Errorf("similar signals: %w", err)
	}

	return ApplySmartOverlay(ci, in, similar), nil
}

// ResumeUnfinalized returns signals the Outcome Tracker should resume
// sampling after a restart (spec.md §4.7).
func (s *Store) ResumeUnfinalized(ctx context.Context) ([]SignalRow, error) {
	rows, err := s.repo.Unfinalized(ctx)
	if err != nil {
		return nil, fmt.Errorf("unfinalized rows: %w", err)
	}
	return rows, nil
}
