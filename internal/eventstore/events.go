package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// BuildStartedMeta describes what a build runs against.
type BuildStartedMeta struct {
	Manifest string `json:"manifest"`
	Revision string `json:"revision,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Trigger  string `json:"trigger,omitempty"` // build, watch or schedule
}

// StageCompletedData is the payload of a StageCompleted event.
type StageCompletedData struct {
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildCompletedData is the payload of a BuildCompleted event.
type BuildCompletedData struct {
	Outcome           string `json:"outcome"`
	DurationMS        int64  `json:"duration_ms"`
	AssetsPacked      int    `json:"assets_packed"`
	AssetsSkipped     int    `json:"assets_skipped"`
	TemplatesRendered int    `json:"templates_rendered"`
	FilesCopied       int    `json:"files_copied"`
}

// BuildFailedData is the payload of a BuildFailed event.
type BuildFailedData struct {
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

func newEvent(buildID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload for build %s: %w", eventType, buildID, err)
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, meta BuildStartedMeta) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildStarted, meta)
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(buildID, stage, result string, duration time.Duration) (*BaseEvent, error) {
	return newEvent(buildID, TypeStageCompleted, StageCompletedData{
		Stage:      stage,
		Result:     result,
		DurationMS: duration.Milliseconds(),
	})
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, data BuildCompletedData) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildCompleted, data)
}

// NewBuildFailed creates a BuildFailed event.
func NewBuildFailed(buildID, stage, errorMsg string, duration time.Duration) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildFailed, BuildFailedData{
		Stage:      stage,
		Error:      errorMsg,
		DurationMS: duration.Milliseconds(),
	})
}
