package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/eventstore"
	"git.home.luguber.info/inful/sitepack/internal/events"
	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/metrics"
	"git.home.luguber.info/inful/sitepack/internal/observability"
)

// Observer receives callbacks around the build lifecycle. Observers must not
// fail the build; they log their own problems.
type Observer interface {
	OnBuildStart(ctx context.Context, r *Report)
	OnStageStart(ctx context.Context, stage StageName)
	OnStageComplete(ctx context.Context, stage StageName, d time.Duration, result StageResult)
	OnBuildComplete(ctx context.Context, r *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnBuildStart(context.Context, *Report)                                  {}
func (NoopObserver) OnStageStart(context.Context, StageName)                                {}
func (NoopObserver) OnStageComplete(context.Context, StageName, time.Duration, StageResult) {}
func (NoopObserver) OnBuildComplete(context.Context, *Report)                               {}

// multiObserver fans out to several observers in order.
type multiObserver []Observer

func (m multiObserver) OnBuildStart(ctx context.Context, r *Report) {
	for _, o := range m {
		o.OnBuildStart(ctx, r)
	}
}

func (m multiObserver) OnStageStart(ctx context.Context, stage StageName) {
	for _, o := range m {
		o.OnStageStart(ctx, stage)
	}
}

func (m multiObserver) OnStageComplete(ctx context.Context, stage StageName, d time.Duration, result StageResult) {
	for _, o := range m {
		o.OnStageComplete(ctx, stage, d, result)
	}
}

func (m multiObserver) OnBuildComplete(ctx context.Context, r *Report) {
	for _, o := range m {
		o.OnBuildComplete(ctx, r)
	}
}

// recorderObserver adapts metrics.Recorder into an Observer.
type recorderObserver struct {
	NoopObserver
	rec metrics.Recorder
}

func (r recorderObserver) OnStageComplete(_ context.Context, stage StageName, d time.Duration, result StageResult) {
	r.rec.ObserveStageDuration(string(stage), d)
	r.rec.IncStageResult(string(stage), resultLabel(result))
}

func (r recorderObserver) OnBuildComplete(_ context.Context, report *Report) {
	r.rec.ObserveBuildDuration(report.Duration())
	r.rec.IncBuildOutcome(string(report.Outcome))
}

func resultLabel(res StageResult) metrics.ResultLabel {
	switch res {
	case StageResultSuccess:
		return metrics.ResultSuccess
	case StageResultCanceled:
		return metrics.ResultCanceled
	case StageResultSkipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFatal
	}
}

// EventStoreObserver appends lifecycle events to an event store.
type EventStoreObserver struct {
	NoopObserver
	store   eventstore.Store
	buildID string
}

// NewEventStoreObserver records builds into store.
func NewEventStoreObserver(store eventstore.Store) *EventStoreObserver {
	return &EventStoreObserver{store: store}
}

func (o *EventStoreObserver) append(ctx context.Context, ev *eventstore.BaseEvent, err error) {
	if err == nil {
		err = eventstore.AppendEvent(ctx, o.store, ev)
	}
	if err != nil {
		observability.WarnContext(ctx, "Failed to record build event", logfields.Error(err))
	}
}

func (o *EventStoreObserver) OnBuildStart(ctx context.Context, r *Report) {
	o.buildID = r.BuildID
	ev, err := eventstore.NewBuildStarted(r.BuildID, eventstore.BuildStartedMeta{
		Manifest: r.Manifest,
		Revision: r.Revision.Commit,
		Branch:   r.Revision.Branch,
		Trigger:  r.Trigger,
	})
	o.append(ctx, ev, err)
}

func (o *EventStoreObserver) OnStageComplete(ctx context.Context, stage StageName, d time.Duration, result StageResult) {
	ev, err := eventstore.NewStageCompleted(o.buildID, string(stage), string(result), d)
	o.append(ctx, ev, err)
}

func (o *EventStoreObserver) OnBuildComplete(ctx context.Context, r *Report) {
	if r.Outcome == OutcomeSuccess {
		ev, err := eventstore.NewBuildCompleted(r.BuildID, eventstore.BuildCompletedData{
			Outcome:           string(r.Outcome),
			DurationMS:        r.Duration().Milliseconds(),
			AssetsPacked:      len(r.AssetsPacked),
			AssetsSkipped:     len(r.AssetsSkipped),
			TemplatesRendered: len(r.RenderedPages),
			FilesCopied:       r.FilesCopied,
		})
		o.append(ctx, ev, err)
		return
	}
	ev, err := eventstore.NewBuildFailed(r.BuildID, string(r.ErrorStage), r.Error, r.Duration())
	o.append(ctx, ev, err)
}

// buildEventPublisher is the part of events.Publisher used by PublishObserver.
type buildEventPublisher interface {
	PublishBuildFinished(ctx context.Context, ev events.BuildFinished) error
}

// PublishObserver announces finished builds on NATS.
type PublishObserver struct {
	NoopObserver
	pub buildEventPublisher
}

// NewPublishObserver publishes a build.finished event through pub.
func NewPublishObserver(pub buildEventPublisher) *PublishObserver {
	return &PublishObserver{pub: pub}
}

func (o *PublishObserver) OnBuildComplete(ctx context.Context, r *Report) {
	err := o.pub.PublishBuildFinished(ctx, BuildFinishedEvent(r))
	if err != nil {
		observability.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}
}

// BuildFinishedEvent converts a finished report into its event form.
func BuildFinishedEvent(r *Report) events.BuildFinished {
	return events.BuildFinished{
		BuildID:           r.BuildID,
		Outcome:           string(r.Outcome),
		Revision:          r.Revision.Commit,
		Start:             r.Start,
		End:               r.End,
		DurationMS:        r.Duration().Milliseconds(),
		AssetsPacked:      len(r.AssetsPacked),
		AssetsSkipped:     len(r.AssetsSkipped),
		TemplatesRendered: len(r.RenderedPages),
		FilesCopied:       r.FilesCopied,
		ErrorStage:        string(r.ErrorStage),
		Error:             r.Error,
	}
}
