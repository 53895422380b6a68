package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(t time.Time, result FinalResult, finalized bool) SignalRow {
	return SignalRow{
		Symbol:      "XBTUSD",
		CreatedAt:   t,
		FinalResult: result,
		Finalized:   finalized,
		HitTP1:      result == WinTP1 || result == WinTP2 || result == WinTP3,
	}
}

func TestDeriveCoinIntelligenceEmpty(t *testing.T) {
	ci := DeriveCoinIntelligence("XBTUSD", nil)
	assert.Equal(t, 0, ci.TotalSignals)
	assert.Equal(t, ActionCaution, ci.RecommendedAction)
}

func TestDeriveCoinIntelligenceIgnoresUnfinalizedRows(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := []SignalRow{
		row(base, WinTP1, true),
		row(base.Add(time.Hour), LossSL, false), // not finalized, excluded
	}

	ci := DeriveCoinIntelligence("XBTUSD", rows)
	assert.Equal(t, 1, ci.TotalSignals)
	assert.Equal(t, 1.0, ci.WinRate)
}

func TestDeriveCoinIntelligenceStreaksAndHotCold(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	var rows []SignalRow
	for i := 0; i < 4; i++ {
		rows = append(rows, row(base.Add(time.Duration(i)*time.Hour), WinTP1, true))
	}

	ci := DeriveCoinIntelligence("XBTUSD", rows)
	require.True(t, ci.StreakIsWin)
	assert.Equal(t, 4, ci.CurrentStreak)
	assert.True(t, ci.IsHot)
	assert.False(t, ci.IsCold)
}

func TestDeriveCoinIntelligenceColdStreak(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	var rows []SignalRow
	for i := 0; i < 3; i++ {
		rows = append(rows, row(base.Add(time.Duration(i)*time.Hour), LossSL, true))
	}

	ci := DeriveCoinIntelligence("XBTUSD", rows)
	assert.True(t, ci.IsCold)
	assert.Equal(t, ActionAvoid, ci.RecommendedAction)
}

func TestTPSLMultipliersWidenSLOnWeakTP1(t *testing.T) {
	tpM, slM := tpSLMultipliers([3]float64{0.1, 0.1, 0.1}, 0.5)
	assert.Equal(t, 0.8, tpM)
	assert.Equal(t, 1.2, slM)
}

func TestTPSLMultipliersWidenTPOnStrongTP3(t *testing.T) {
	tpM, slM := tpSLMultipliers([3]float64{0.5, 0.4, 0.35}, 0.1)
	assert.Equal(t, 1.2, tpM)
	assert.Equal(t, 1.0, slM)
}

func TestMineOptimalConditionsTopHours(t *testing.T) {
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	rows := []SignalRow{
		{FinalResult: WinTP1, CreatedAt: base, PumpPct: 10, CombinedScore: 7},
		{FinalResult: WinTP1, CreatedAt: base, PumpPct: 12, CombinedScore: 8},
		{FinalResult: WinTP1, CreatedAt: base.Add(time.Hour), PumpPct: 11, CombinedScore: 7.5},
		{FinalResult: LossSL, CreatedAt: base.Add(2 * time.Hour), PumpPct: 9, CombinedScore: 6},
	}

	oc := mineOptimalConditions(rows)
	assert.Equal(t, 10.0, oc.MinPumpPct)
	assert.Equal(t, 12.0, oc.MaxPumpPct)
	require.NotEmpty(t, oc.TopHours)
	assert.Equal(t, 9, oc.TopHours[0])
}
