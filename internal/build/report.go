package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/fsutil"
	"git.home.luguber.info/inful/sitepack/internal/git"
	"git.home.luguber.info/inful/sitepack/internal/version"
)

// ReportFileName is the name of the persisted JSON report.
const ReportFileName = "build-report.json"

// Outcome is the final result of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report captures what one build did. A report is produced for every run,
// including failed and canceled ones.
type Report struct {
	SchemaVersion   int                         `json:"schema_version"`
	BuildID         string                      `json:"build_id"`
	Manifest        string                      `json:"manifest"`
	Trigger         string                      `json:"trigger,omitempty"`
	Revision        git.Revision                `json:"revision"`
	Start           time.Time                   `json:"start"`
	End             time.Time                   `json:"end"`
	Outcome         Outcome                     `json:"outcome"`
	StageDurations  map[StageName]time.Duration `json:"stage_durations"`
	StageResults    map[StageName]StageResult   `json:"stage_results"`
	AssetsPacked    []string                    `json:"assets_packed"`
	AssetsSkipped   []string                    `json:"assets_skipped"`
	RenderedPages   []string                    `json:"rendered_pages"`
	FilesCopied     int                         `json:"files_copied"`
	LinksChecked    int                         `json:"links_checked,omitempty"`
	ErrorStage      StageName                   `json:"error_stage,omitempty"`
	Error           string                      `json:"error,omitempty"`
	SitepackVersion string                      `json:"sitepack_version"`

	err error
}

func newReport(buildID, manifest, trigger string) *Report {
	return &Report{
		SchemaVersion:   1,
		BuildID:         buildID,
		Manifest:        manifest,
		Trigger:         trigger,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageResults:    make(map[StageName]StageResult),
		AssetsPacked:    []string{},
		AssetsSkipped:   []string{},
		RenderedPages:   []string{},
		SitepackVersion: version.Version,
	}
}

func (r *Report) recordStage(stage StageName, d time.Duration, res StageResult) {
	r.StageDurations[stage] = d
	r.StageResults[stage] = res
}

// finish stamps the end time and derives the outcome from err.
func (r *Report) finish(err error) {
	r.End = time.Now()
	r.err = err
	if err == nil {
		r.Outcome = OutcomeSuccess
		return
	}
	r.Error = err.Error()
	var se *StageError
	if errors.As(err, &se) {
		r.ErrorStage = se.Stage
		if se.Kind == StageErrorCanceled {
			r.Outcome = OutcomeCanceled
			return
		}
	}
	r.Outcome = OutcomeFailed
}

// Err returns the terminal error of the build, if any.
func (r *Report) Err() error { return r.err }

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s outcome=%s duration=%s packed=%d skipped=%d rendered=%d copied=%d",
		r.BuildID, r.Outcome, r.Duration().Truncate(time.Millisecond),
		len(r.AssetsPacked), len(r.AssetsSkipped), len(r.RenderedPages), r.FilesCopied)
}

// Persist writes the report atomically into dir as JSON plus a text summary.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.finish(r.err)
	}
	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, ReportFileName), append(jb, '\n'), 0o600); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.Summary()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}
	return nil
}

// LoadReport reads a persisted report.
func LoadReport(dir string) (*Report, error) {
	// #nosec G304 -- dir is the configured internal directory.
	data, err := os.ReadFile(filepath.Join(dir, ReportFileName))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse build report: %w", err)
	}
	return &r, nil
}
