package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/pumpshort/internal/memory"
)

func testLevels() Levels {
	return Levels{Entry: 100, TP1: 98, TP2: 95, TP3: 92, SL: 105}
}

func TestDeriveFinalResultWinsOnDeepestTierAtFirstHit(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{
		{Horizon: 5 * time.Minute, Price: 93}, // clears TP1 (98) and TP2 (95), not TP3 (92)
	}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.WinTP2, result)
}

func TestDeriveFinalResultWinTP3WhenDeepestReached(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{{Horizon: 5 * time.Minute, Price: 90}}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.WinTP3, result)
}

func TestDeriveFinalResultWinTP1OnlyWhenNearestReached(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{{Horizon: 5 * time.Minute, Price: 97}}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.WinTP1, result)
}

func TestDeriveFinalResultLossWhenSLHitBeforeAnyTP(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{
		{Horizon: 5 * time.Minute, Price: 101},
		{Horizon: 15 * time.Minute, Price: 106},
	}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.LossSL, result)
}

func TestDeriveFinalResultFirstTPWinsEvenIfLaterSLWouldHit(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{
		{Horizon: 5 * time.Minute, Price: 97}, // TP1 first
		{Horizon: 15 * time.Minute, Price: 106},
	}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.WinTP1, result)
}

func TestDeriveFinalResultBreakevenWithinBand(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{
		{Horizon: 5 * time.Minute, Price: 100.2},
		{Horizon: 240 * time.Minute, Price: 100.3},
	}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.Breakeven, result)
}

func TestDeriveFinalResultTimeoutOutsideBand(t *testing.T) {
	levels := testLevels()
	samples := []HorizonSample{
		{Horizon: 5 * time.Minute, Price: 101},
		{Horizon: 240 * time.Minute, Price: 102},
	}
	result := DeriveFinalResult(levels, levels.Entry, samples)
	assert.Equal(t, memory.Timeout, result)
}

func TestClassifySampleShortSemantics(t *testing.T) {
	levels := testLevels()
	tp1, tp2, tp3, sl := classifySample(levels, 94)
	assert.True(t, tp1)
	assert.True(t, tp2)
	assert.False(t, tp3)
	assert.False(t, sl)

	_, _, _, sl = classifySample(levels, 106)
	assert.True(t, sl)
}
