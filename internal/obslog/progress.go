package obslog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress reports CLI-visible progress for a long-running command (such
// as backtest-replay's row feed): a spinner, a bar, and an ETA, all
// optional.
type Progress struct {
	mu           sync.Mutex
	name         string
	total        int
	current      int
	startTime    time.Time
	spinner      *spinner
	showSpinner  bool
	showBar      bool
	showETA      bool
}

// spinner is a rotating character cycled on its own ticker goroutine.
type spinner struct {
	chars    []string
	current  int
	interval time.Duration
	stop     chan struct{}
	running  bool
	mu       sync.Mutex
}

// ProgressConfig tunes which elements Progress renders.
type ProgressConfig struct {
	ShowSpinner  bool
	ShowBar      bool
	ShowETA      bool
	SpinnerStyle SpinnerStyle
}

// SpinnerStyle selects the spinner's character set.
type SpinnerStyle string

const (
	SpinnerDots     SpinnerStyle = "dots"
	SpinnerLine     SpinnerStyle = "line"
	SpinnerPipeline SpinnerStyle = "pipeline"
)

// NewProgress starts a progress reporter for total items under name.
func NewProgress(name string, total int, cfg ProgressConfig) *Progress {
	p := &Progress{
		name:        name,
		total:       total,
		startTime:   time.Now(),
		showSpinner: cfg.ShowSpinner,
		showBar:     cfg.ShowBar,
		showETA:     cfg.ShowETA,
	}
	if cfg.ShowSpinner {
		p.spinner = newSpinner(cfg.SpinnerStyle)
		p.spinner.start()
	}
	return p
}

func newSpinner(style SpinnerStyle) *spinner {
	s := &spinner{interval: 100 * time.Millisecond, stop: make(chan struct{}, 1)}
	switch style {
	case SpinnerLine:
		s.chars = []string{"-", "\\", "|", "/"}
	case SpinnerPipeline:
		s.chars = []string{"|>", "|->", "|-->", "|--->"}
		s.interval = 200 * time.Millisecond
	default:
		s.chars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	}
	return s
}

func (s *spinner) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.spin()
}

func (s *spinner) stopSpinning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stop <- struct{}{}
}

func (s *spinner) spin() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.mu.Unlock()
		}
	}
}

func (s *spinner) frame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[s.current]
}

// Increment advances progress by one item.
func (p *Progress) Increment() { p.Update(p.current + 1) }

// Update sets the current item count and redraws.
func (p *Progress) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if p.showBar || p.showETA {
		p.render("")
	}
}

// UpdateWithMessage sets the current item count, redrawing with a status
// message (e.g. the symbol currently under analysis).
func (p *Progress) UpdateWithMessage(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.render(message)
}

// Finish stops the spinner and prints a completion line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.stopSpinning()
	}
	fmt.Printf("\r%s done (%d items, %v)\n", p.name, p.total, time.Since(p.startTime).Round(time.Millisecond))
}

// FinishWithMessage stops the spinner and prints a custom completion message.
func (p *Progress) FinishWithMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.stopSpinning()
	}
	fmt.Printf("\r%s: %s (%v)\n", p.name, message, time.Since(p.startTime).Round(time.Millisecond))
}

// Fail stops the spinner and prints a failure line.
func (p *Progress) Fail(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.stopSpinning()
	}
	fmt.Printf("\r%s failed: %s (%v)\n", p.name, reason, time.Since(p.startTime).Round(time.Millisecond))
}

func (p *Progress) render(message string) {
	var b strings.Builder
	b.WriteString("\r\033[K")

	if p.spinner != nil && p.showSpinner {
		b.WriteString(p.spinner.frame())
		b.WriteString(" ")
	}
	b.WriteString(p.name)

	if p.showBar && p.total > 0 {
		const width = 20
		filled := int(float64(width) * float64(p.current) / float64(p.total))
		b.WriteString(" [")
		for i := 0; i < width; i++ {
			if i < filled {
				b.WriteString("#")
			} else {
				b.WriteString(".")
			}
		}
		pct := float64(p.current) / float64(p.total) * 100
		fmt.Fprintf(&b, "] %d/%d (%.1f%%)", p.current, p.total, pct)
	} else if p.total > 0 {
		fmt.Fprintf(&b, " (%d/%d)", p.current, p.total)
	}

	if p.showETA && p.total > 0 && p.current > 0 {
		elapsed := time.Since(p.startTime)
		rate := float64(p.current) / elapsed.Seconds()
		remaining := p.total - p.current
		eta := time.Duration(float64(remaining)/rate) * time.Second
		if eta > time.Hour {
			fmt.Fprintf(&b, " ETA %v", eta.Round(time.Minute))
		} else {
			fmt.Fprintf(&b, " ETA %v", eta.Round(time.Second))
		}
	}

	if message != "" {
		b.WriteString(" - ")
		b.WriteString(message)
	}
	fmt.Print(b.String())
}

// StepLogger reports per-step timing for a fixed, named sequence of
// pipeline steps (e.g. load/detect/score).
type StepLogger struct {
	steps     []string
	current   int
	startTime time.Time
	stepTimes []time.Duration
	progress  *Progress
}

// NewStepLogger starts a step logger over a fixed, named step sequence.
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		steps:     steps,
		current:   -1,
		startTime: time.Now(),
		stepTimes: make([]time.Duration, len(steps)),
		progress: NewProgress(name, len(steps), ProgressConfig{
			ShowSpinner: true, ShowBar: true, ShowETA: true, SpinnerStyle: SpinnerPipeline,
		}),
	}
}

// StartStep begins the named step, recording the prior step's duration.
func (sl *StepLogger) StartStep(name string) {
	idx := -1
	for i, s := range sl.steps {
		if s == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn().Str("step", name).Msg("unknown pipeline step")
		return
	}
	if sl.current >= 0 {
		sl.stepTimes[sl.current] = time.Since(sl.startTime) - sl.elapsedBeforeCurrent()
	}
	sl.current = idx
	sl.progress.UpdateWithMessage(idx+1, name)
	log.Info().Str("step", name).Int("step_number", idx+1).Int("total_steps", len(sl.steps)).Msg("starting step")
}

// CompleteStep records the current step's duration.
func (sl *StepLogger) CompleteStep() {
	if sl.current < 0 {
		return
	}
	duration := time.Since(sl.startTime) - sl.elapsedBeforeCurrent()
	sl.stepTimes[sl.current] = duration
	log.Info().Str("step", sl.steps[sl.current]).Dur("duration", duration).Msg("step completed")
}

// Finish completes the current step and logs a per-step timing summary.
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	total := time.Since(sl.startTime)
	sl.progress.FinishWithMessage(fmt.Sprintf("%d steps completed", len(sl.steps)))

	log.Info().Dur("total_duration", total).Msg("pipeline completed")
	for i, step := range sl.steps {
		pct := float64(sl.stepTimes[i]) / float64(total) * 100
		log.Info().Str("step", step).Dur("duration", sl.stepTimes[i]).Float64("percentage", pct).Msg("step timing")
	}
}

// Fail marks the step logger as failed at the current step.
func (sl *StepLogger) Fail(reason string) {
	sl.progress.Fail(reason)
	log.Error().
		Str("failed_step", sl.currentStepName()).
		Int("completed_steps", sl.current).
		Int("total_steps", len(sl.steps)).
		Str("reason", reason).
		Msg("pipeline failed")
}

func (sl *StepLogger) currentStepName() string {
	if sl.current >= 0 && sl.current < len(sl.steps) {
		return sl.steps[sl.current]
	}
	return "unknown"
}

func (sl *StepLogger) elapsedBeforeCurrent() time.Duration {
	var total time.Duration
	for i := 0; i < sl.current; i++ {
		total += sl.stepTimes[i]
	}
	return total
}

// DefaultProgressConfig shows the spinner, bar, and ETA.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{ShowSpinner: true, ShowBar: true, ShowETA: true, SpinnerStyle: SpinnerDots}
}

// QuietProgressConfig renders nothing (for non-interactive/piped output).
func QuietProgressConfig() ProgressConfig {
	return ProgressConfig{}
}
