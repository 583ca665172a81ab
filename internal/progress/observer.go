package progress

import (
	"github.com/personaforge/personaforge/internal/pipeline"
)

// Observer adapts a ProgressDisplay to pipeline.Observer.
type Observer struct {
	display *ProgressDisplay
}

var _ pipeline.Observer = (*Observer)(nil)

// NewObserver returns a pipeline observer drawing on display.
func NewObserver(display *ProgressDisplay) *Observer {
	return &Observer{display: display}
}

func (o *Observer) StageStarted(ev pipeline.StageEvent) {
	_ = o.display.StartStage(toStageInfo(ev, StageInProgress))
}

func (o *Observer) StageCompleted(ev pipeline.StageEvent) {
	_ = o.display.CompleteStage(toStageInfo(ev, StageCompleted))
}

func (o *Observer) StageFailed(ev pipeline.StageEvent, err error) {
	_ = o.display.FailStage(toStageInfo(ev, StageFailed), err)
}

func toStageInfo(ev pipeline.StageEvent, status StageStatus) StageInfo {
	return StageInfo{
		Mode:        string(ev.Mode),
		Name:        string(ev.Stage),
		Number:      ev.Number,
		TotalStages: ev.Total,
		Status:      status,
	}
}
