package pipeline

import "github.com/personaforge/personaforge/internal/bundle"

// Stage is one step of a pipeline run.
type Stage string

const (
	StageNormalizing Stage = "normalizing"
	StageValidating  Stage = "validating"
	StageGenerating  Stage = "generating"
	StageScoring     Stage = "scoring"
	StagePackaging   Stage = "packaging"
	StagePersisting  Stage = "persisting"
)

// stagePlans lists the stages each mode runs, in order.
var stagePlans = map[bundle.Mode][]Stage{
	bundle.ModeAssess: {StageNormalizing, StageValidating, StageGenerating, StageScoring, StagePackaging},
	bundle.ModeTest:   {StageNormalizing, StageValidating, StageGenerating},
	bundle.ModeBuild:  {StageNormalizing, StageValidating, StageGenerating, StageScoring, StagePackaging, StagePersisting},
	bundle.ModeDeploy: {StageNormalizing, StageValidating, StageGenerating, StageScoring, StagePackaging, StagePersisting},
}

// Stages returns the stages mode runs when validation passes.
func Stages(mode bundle.Mode) []Stage {
	return append([]Stage(nil), stagePlans[mode]...)
}

// StageEvent identifies a stage within a run.
type StageEvent struct {
	Mode   bundle.Mode
	Stage  Stage
	Number int
	Total  int
}

// Observer receives stage transitions. Calls happen on the goroutine running
// the pipeline, in order.
type Observer interface {
	StageStarted(ev StageEvent)
	StageCompleted(ev StageEvent)
	StageFailed(ev StageEvent, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StageStarted(StageEvent)       {}
func (NopObserver) StageCompleted(StageEvent)     {}
func (NopObserver) StageFailed(StageEvent, error) {}

// run tracks stage progress for one invocation.
type run struct {
	mode     bundle.Mode
	plan     []Stage
	observer Observer
}

func (r *run) step(stage Stage, fn func() error) error {
	ev := StageEvent{Mode: r.mode, Stage: stage, Total: len(r.plan)}
	for i, s := range r.plan {
		if s == stage {
			ev.Number = i + 1
		}
	}

	r.observer.StageStarted(ev)
	if err := fn(); err != nil {
		r.observer.StageFailed(ev, err)
		return err
	}
	r.observer.StageCompleted(ev)
	return nil
}
