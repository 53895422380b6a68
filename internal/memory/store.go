package memory

import "context"

// Repository is the durable SignalMemory log (spec.md §4.6.1): an
// append-then-update store of SignalRow plus whatever a concrete backend
// needs to serve DeriveCoinIntelligence and the smart overlay's similarity
// search.
type Repository interface {
	// RecordSignal inserts a new row for a just-emitted signal and returns
	// its assigned ID.
	RecordSignal(ctx context.Context, row SignalRow) (string, error)

	// UpdateOutcome applies a partial outcome update to an existing row,
	// identified by ID. Only non-nil fields in upd are written.
	UpdateOutcome(ctx context.Context, id string, upd OutcomeUpdate) error

	// RowsForSymbol returns all rows (finalized or not) for a symbol,
	// oldest first, for DeriveCoinIntelligence.
	RowsForSymbol(ctx context.Context, symbol string) ([]SignalRow, error)

	// SimilarSignals returns finalized rows across all symbols within the
	// given pump/score bands, for the smart overlay's similarity lookup.
	SimilarSignals(ctx context.Context, pumpPct, combinedScore float64, pumpBand, scoreBand float64, limit int) ([]SimilarSignal, error)

	// Unfinalized returns rows still awaiting outcome sampling, for the
	// Outcome Tracker to resume after a restart.
	Unfinalized(ctx context.Context) ([]SignalRow, error)
}
