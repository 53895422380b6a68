// Package memory implements the learning subsystem of spec.md §4.6: a
// durable append-only log of signal outcomes plus a derived per-symbol
// CoinIntelligence aggregate, the smart-prediction overlay, and optimal-
// condition mining.
package memory

import "time"

// FinalResult classifies how a tracked signal resolved (spec.md §3.1).
type FinalResult string

const (
	WinTP1    FinalResult = "WIN_TP1"
	WinTP2    FinalResult = "WIN_TP2"
	WinTP3    FinalResult = "WIN_TP3"
	LossSL    FinalResult = "LOSS_SL"
	Breakeven FinalResult = "BREAKEVEN"
	Timeout   FinalResult = "TIMEOUT"
)

// IsWin reports whether the result counts toward the win rate.
func (r FinalResult) IsWin() bool {
	switch r {
	case WinTP1, WinTP2, WinTP3:
		return true
	default:
		return false
	}
}

// AnalyzerScores is the per-analyzer score snapshot attached to a signal,
// keyed by the ten fixed analyzer names.
type AnalyzerScores map[string]float64

// SignalRow is one row of the SignalMemory log: a signal plus its
// (initially null) outcome fields, filled in as the Outcome Tracker
// reports back.
type SignalRow struct {
	ID              string
	Symbol          string
	CreatedAt       time.Time
	PumpPct         float64
	PumpElapsedMin  float64
	EntryPrice      float64
	PeakPrice       float64
	StartPrice      float64
	SLPrice         float64
	TPPrices        [3]float64
	AnalyzerScores  AnalyzerScores
	CombinedScore   float64
	MLProbability   float64
	Tier            string

	// Outcome fields, nil/zero until finalized.
	Price5m, Price15m, Price30m, Price1h, Price4h float64
	HitTP1, HitTP2, HitTP3, HitSL                 bool
	MaxProfitPct, MaxDrawdownPct                   float64
	FinalResult                                    FinalResult
	Finalized                                      bool
}

// OutcomeUpdate is the payload passed to UpdateOutcome; only non-nil
// fields are applied so incremental sampling calls can fill in one horizon
// at a time.
type OutcomeUpdate struct {
	Price5m, Price15m, Price30m, Price1h, Price4h *float64
	HitTP1, HitTP2, HitTP3, HitSL                 *bool
	MaxProfitPct, MaxDrawdownPct                   *float64
	FinalResult                                    *FinalResult
	Finalize                                       bool
}

// OptimalConditions is mined from winning signals for a symbol
// (spec.md §4.6.2).
type OptimalConditions struct {
	MinPumpPct        float64
	MaxPumpPct        float64
	MeanCombinedScore float64
	TopHours          []int // top-3 hours-of-day by win count
	AnalyzerDelta     map[string]float64 // mean(win) - mean(loss) per analyzer
}

// CoinIntelligence is the per-symbol aggregate derived from all finalized
// outcome rows for that symbol (spec.md §3.1, §4.6.2). It is a pure
// function of the rows: recomputing from the same rows always yields the
// same struct.
type CoinIntelligence struct {
	Symbol               string
	TotalSignals         int
	Wins                 int
	Losses               int
	WinRate              float64
	WeightedWinRate      float64
	TPHitRates           [3]float64
	SLHitRate            float64
	TPMultiplier         float64
	SLMultiplier         float64
	ConfidenceAdjustment float64
	RecommendedAction    string
	CurrentStreak        int
	StreakIsWin          bool
	IsHot                bool
	IsCold                bool
	MaxWinStreak         int
	MaxLossStreak        int
	OptimalConditions    OptimalConditions
}

const (
	ActionTrade   = "TRADE"
	ActionCaution = "CAUTION"
	ActionAvoid   = "AVOID"
)
