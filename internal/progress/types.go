// Package progress renders pipeline stage transitions on the terminal.
// It tracks stage status, picks symbols the terminal can show, and drives
// a spinner while a stage runs.
package progress

import apperrors "github.com/personaforge/personaforge/internal/errors"

// StageStatus is where a stage is in its run.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageInProgress
	StageCompleted
	StageFailed
)

var stageStatusNames = map[StageStatus]string{
	StagePending:    "pending",
	StageInProgress: "in_progress",
	StageCompleted:  "completed",
	StageFailed:     "failed",
}

func (s StageStatus) String() string {
	if name, ok := stageStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// StageInfo describes one stage of a run for display.
type StageInfo struct {
	// Mode is the pipeline mode (assess, test, build, deploy)
	Mode string
	// Name is the stage name (e.g., "validating", "persisting")
	Name string
	// Number is the 1-based position of the stage in the run
	Number int
	// TotalStages is the number of stages the mode runs
	TotalStages int
	Status      StageStatus
}

// Validate rejects stage descriptions the display cannot number.
func (p StageInfo) Validate() error {
	if p.Name == "" {
		return apperrors.NewArgumentError("stage name cannot be empty")
	}
	if p.Number <= 0 {
		return apperrors.NewArgumentError("stage number must be > 0")
	}
	if p.TotalStages <= 0 {
		return apperrors.NewArgumentError("total stages must be > 0")
	}
	if p.Number > p.TotalStages {
		return apperrors.NewArgumentError("stage number cannot exceed total stages")
	}
	return nil
}

// TerminalCapabilities is what the progress stream (stderr) can render.
// Width is 0 when stderr is not a terminal.
type TerminalCapabilities struct {
	IsTTY           bool
	SupportsColor   bool
	SupportsUnicode bool
	Width           int
}

// ProgressSymbols holds the done/failed marks and the spinner.CharSets index.
type ProgressSymbols struct {
	Checkmark  string
	Failure    string
	SpinnerSet int
}
