package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/observability"
)

// runStages executes stages in order, recording timing and stopping on the
// first failure. The context is not consulted between stages.
func runStages(ctx context.Context, bs *buildState, stages []StageDef) error {
	for _, st := range stages {
		bs.observer.OnStageStart(ctx, st.Name)

		sctx := observability.WithStage(ctx, string(st.Name))
		sctx, span := observability.StartStageSpan(sctx, string(st.Name))
		observability.DebugContext(sctx, "Stage started")

		t0 := time.Now()
		err := st.Fn(sctx, bs)
		dur := time.Since(t0)
		observability.EndSpan(span, err)

		result := StageResultSuccess
		if err != nil {
			result = StageResultFatal
		}
		bs.report.recordStage(st.Name, dur, result)
		bs.observer.OnStageComplete(ctx, st.Name, dur, result)

		if err != nil {
			se := &StageError{Kind: StageErrorFatal, Stage: st.Name, Err: err}
			observability.ErrorContext(sctx, "Stage failed",
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			for _, rest := range stages {
				if _, ran := bs.report.StageResults[rest.Name]; !ran {
					bs.report.StageResults[rest.Name] = StageResultSkipped
				}
			}
			return se
		}
		observability.DebugContext(sctx, "Stage completed", logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}
