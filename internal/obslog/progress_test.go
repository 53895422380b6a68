package obslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressUpdateDoesNotPanicWithoutRendering(t *testing.T) {
	p := NewProgress("scan", 10, QuietProgressConfig())
	for i := 0; i <= 10; i++ {
		p.Update(i)
	}
	p.Finish()
}

func TestStepLoggerTracksUnknownStepAsWarning(t *testing.T) {
	sl := NewStepLogger("replay", []string{"load", "detect", "score"})
	sl.StartStep("load")
	sl.CompleteStep()
	sl.StartStep("bogus") // unknown step, logged and ignored
	sl.StartStep("detect")
	sl.CompleteStep()
	sl.StartStep("score")
	sl.Finish()
}

func TestSpinnerFrameStartsAtFirstChar(t *testing.T) {
	s := newSpinner(SpinnerLine)
	first := s.frame()
	assert.Equal(t, "-", first)
}
