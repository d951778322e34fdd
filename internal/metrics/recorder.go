package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// AssetLabel enumerates what the packer did with one asset.
type AssetLabel string

const (
	AssetPacked  AssetLabel = "packed"
	AssetSkipped AssetLabel = "skipped"
	AssetFailed  AssetLabel = "failed"
)

// Recorder defines observability hooks for builds, stages, filters and
// assets. Implementations may forward to Prometheus or similar backends.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|failed|canceled
	ObserveFilterDuration(filter string, d time.Duration, success bool)
	IncAssetResult(result AssetLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)        {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                {}
func (NoopRecorder) IncBuildOutcome(string)                            {}
func (NoopRecorder) ObserveFilterDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncAssetResult(AssetLabel)                         {}
