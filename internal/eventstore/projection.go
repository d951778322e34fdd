// Package eventstore records build lifecycle events in SQLite and projects
// them into a build history.
package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Build statuses as shown in history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// BuildSummary is a read model of one build.
type BuildSummary struct {
	BuildID           string            `json:"build_id"`
	Status            string            `json:"status"`
	Trigger           string            `json:"trigger,omitempty"`
	Revision          string            `json:"revision,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	Duration          time.Duration     `json:"duration,omitempty"`
	AssetsPacked      int               `json:"assets_packed"`
	AssetsSkipped     int               `json:"assets_skipped"`
	TemplatesRendered int               `json:"templates_rendered"`
	FilesCopied       int               `json:"files_copied"`
	Stages            map[string]string `json:"stages,omitempty"` // stage -> result
	ErrorStage        string            `json:"error_stage,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// BuildHistoryProjection maintains an in-memory view of build history,
// reconstructed from events stored in the event store.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary // buildID -> summary
	history  []*BuildSummary          // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a new projection backed by the given store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{
			BuildID:   buildID,
			Status:    StatusRunning,
			StartedAt: event.Timestamp(),
			Stages:    make(map[string]string),
		}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = StatusRunning
		var meta BuildStartedMeta
		if err := DecodePayload(event, &meta); err == nil {
			summary.Revision = meta.Revision
			summary.Trigger = meta.Trigger
		}

	case TypeStageCompleted:
		var data StageCompletedData
		if err := DecodePayload(event, &data); err == nil && data.Stage != "" {
			summary.Stages[data.Stage] = data.Result
		}

	case TypeBuildCompleted:
		p.finishLocked(summary, event.Timestamp())
		summary.Status = StatusSuccess
		var data BuildCompletedData
		if err := DecodePayload(event, &data); err == nil {
			summary.AssetsPacked = data.AssetsPacked
			summary.AssetsSkipped = data.AssetsSkipped
			summary.TemplatesRendered = data.TemplatesRendered
			summary.FilesCopied = data.FilesCopied
		}
		p.addToHistoryLocked(summary)

	case TypeBuildFailed:
		p.finishLocked(summary, event.Timestamp())
		summary.Status = StatusFailed
		var data BuildFailedData
		if err := DecodePayload(event, &data); err == nil {
			summary.ErrorStage = data.Stage
			summary.ErrorMessage = data.Error
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *BuildHistoryProjection) finishLocked(summary *BuildSummary, at time.Time) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
}

func (p *BuildHistoryProjection) addToHistoryLocked(summary *BuildSummary) {
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
}

// pruneBuildsLocked drops finished builds that fell out of the bounded
// history. Running builds are kept. Caller must hold p.mu.
func (p *BuildHistoryProjection) pruneBuildsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, summary := range p.builds {
		if summary.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns finished builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []*BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*BuildSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetBuild returns a copy of the summary for a specific build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (*BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.builds[buildID]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// GetLastCompletedBuild returns the most recently finished build, if any.
func (p *BuildHistoryProjection) GetLastCompletedBuild() *BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
