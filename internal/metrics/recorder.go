package metrics

import (
	"time"

	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder receives build and stage observations. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // success|partial|failed|aborted
	ObserveAsset(kind string, d time.Duration, ok bool)
	SetRecords(n int)
	AddBrokenLinks(n int)
	IncFetchRetry()
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) ObserveAsset(string, time.Duration, bool)   {}
func (NoopRecorder) SetRecords(int)                             {}
func (NoopRecorder) AddBrokenLinks(int)                         {}
func (NoopRecorder) IncFetchRetry()                             {}

// AssetObserver adapts a Recorder to the resolver's per-asset callback.
type AssetObserver struct {
	Recorder Recorder
}

// ObserveAsset implements ssg.Observer.
func (o AssetObserver) ObserveAsset(_ ssg.LogicalPath, kind ssg.SourceKind, d time.Duration, err error) {
	o.Recorder.ObserveAsset(kind.String(), d, err == nil)
}
