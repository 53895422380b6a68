package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/pumpshort/internal/memory"
)

func TestFollowerStaysInactiveBelowActivation(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultTrailingConfig()
	f := NewFollower(cfg, 100, 110, start)

	event := f.Update(start.Add(time.Minute), 99.5) // 0.5% profit, below 2% activation
	assert.False(t, event.Closed)
	assert.Equal(t, TrailingInactive, f.State())
}

func TestFollowerActivatesAndTracksLow(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultTrailingConfig()
	f := NewFollower(cfg, 100, 110, start)

	f.Update(start.Add(time.Minute), 97) // 3% profit, activates
	assert.Equal(t, TrailingActive, f.State())

	f.Update(start.Add(2*time.Minute), 95) // new low
	event := f.Update(start.Add(3*time.Minute), 95*(1+cfg.TrailDistancePct/100))
	assert.True(t, event.Closed)
	assert.Equal(t, memory.WinTP1, event.Reason)
}

func TestFollowerClosesOnStopLossAnyState(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultTrailingConfig()
	f := NewFollower(cfg, 100, 110, start)

	event := f.Update(start.Add(time.Minute), 111)
	assert.True(t, event.Closed)
	assert.Equal(t, memory.LossSL, event.Reason)
}

func TestFollowerClosesOnMaxTrackingDuration(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultTrailingConfig()
	f := NewFollower(cfg, 100, 110, start)

	event := f.Update(start.Add(241*time.Minute), 99)
	assert.True(t, event.Closed)
	assert.Equal(t, memory.Timeout, event.Reason)
}

func TestFollowerIgnoresTicksAfterClose(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := DefaultTrailingConfig()
	f := NewFollower(cfg, 100, 110, start)

	f.Update(start.Add(time.Minute), 111) // closes on SL
	event := f.Update(start.Add(2*time.Minute), 50)
	assert.False(t, event.Closed)
	assert.Equal(t, TrailingClosed, f.State())
}
