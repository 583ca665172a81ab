package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// ProgressDisplay draws stage progress to a writer, normally stderr so
// stdout stays free for command output.
type ProgressDisplay struct {
	mu           sync.Mutex
	out          io.Writer
	capabilities TerminalCapabilities
	currentStage *StageInfo
	spinner      *spinner.Spinner
	symbols      ProgressSymbols
}

// NewProgressDisplay creates a new progress display with the given terminal capabilities
func NewProgressDisplay(out io.Writer, caps TerminalCapabilities) *ProgressDisplay {
	return &ProgressDisplay{
		out:          out,
		capabilities: caps,
		symbols:      SelectSymbols(caps),
	}
}

// StartStage begins displaying progress for a stage
func (p *ProgressDisplay) StartStage(stage StageInfo) error {
	if err := stage.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinnerLocked()
	stage.Status = StageInProgress
	p.currentStage = &stage
	msg := buildStageMessage(stage)

	if p.capabilities.IsTTY {
		p.spinner = spinner.New(
			spinner.CharSets[p.symbols.SpinnerSet],
			100*time.Millisecond,
			spinner.WithWriter(p.out),
		)
		p.spinner.Suffix = " " + msg
		p.spinner.Start()
	} else {
		fmt.Fprintln(p.out, msg)
	}

	return nil
}

// CompleteStage stops the spinner and displays completion status
func (p *ProgressDisplay) CompleteStage(stage StageInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinnerLocked()
	fmt.Fprintf(p.out, "%s %s\n", checkmark(p.symbols, p.capabilities.SupportsColor), buildStageMessage(stage))
	p.currentStage = nil
	return nil
}

// FailStage stops the spinner and displays failure status
func (p *ProgressDisplay) FailStage(stage StageInfo, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinnerLocked()
	fmt.Fprintf(p.out, "%s %s failed: %v\n", failureMark(p.symbols, p.capabilities.SupportsColor), buildStageMessage(stage), err)
	p.currentStage = nil
	return nil
}

// Current returns the stage being displayed, if any.
func (p *ProgressDisplay) Current() (StageInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentStage == nil {
		return StageInfo{}, false
	}
	return *p.currentStage, true
}

// StopSpinner stops the spinner without showing completion/failure
func (p *ProgressDisplay) StopSpinner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopSpinnerLocked()
}

func (p *ProgressDisplay) stopSpinnerLocked() {
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}
