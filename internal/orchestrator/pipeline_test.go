package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateConfirmation(t *testing.T) {
	t.Run("new peak resets and stays unconfirmed", func(t *testing.T) {
		peak, confirmed := evaluateConfirmation(100, 105, 0.5)
		assert.Equal(t, 105.0, peak)
		assert.False(t, confirmed)
	})

	t.Run("drop below threshold does not confirm", func(t *testing.T) {
		peak, confirmed := evaluateConfirmation(100, 99.6, 0.5)
		assert.Equal(t, 100.0, peak)
		assert.False(t, confirmed)
	})

	t.Run("drop meeting threshold confirms", func(t *testing.T) {
		peak, confirmed := evaluateConfirmation(100, 99.5, 0.5)
		assert.Equal(t, 100.0, peak)
		assert.True(t, confirmed)
	})

	t.Run("zero peak never confirms", func(t *testing.T) {
		_, confirmed := evaluateConfirmation(0, 0, 0.5)
		assert.False(t, confirmed)
	})
}

func TestEvaluateAbandon(t *testing.T) {
	t.Run("price still well above both floors", func(t *testing.T) {
		assert.False(t, evaluateAbandon(120, 100, 110))
	})

	t.Run("price crosses the 70 percent unwind floor", func(t *testing.T) {
		// peak 120, start 100: unwind floor = 120 - 0.7*20 = 106
		assert.True(t, evaluateAbandon(120, 100, 105))
	})

	t.Run("price crosses the start markup floor even with a shallow rise", func(t *testing.T) {
		// peak 103, start 100: unwind floor = 103 - 0.7*3 = 100.9, start floor = 101
		assert.True(t, evaluateAbandon(103, 100, 100.95))
	})
}

func TestAnalyzingPollInterval(t *testing.T) {
	assert.Equal(t, analyzingFastPoll, analyzingPollInterval(0))
	assert.Equal(t, analyzingFastPoll, analyzingPollInterval(90*time.Second))
	assert.Equal(t, analyzingSlowPoll, analyzingPollInterval(2*time.Minute))
	assert.Equal(t, analyzingSlowPoll, analyzingPollInterval(10*time.Minute))
}
