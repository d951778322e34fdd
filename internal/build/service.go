package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitepack/internal/assets"
	"git.home.luguber.info/inful/sitepack/internal/config"
	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
	"git.home.luguber.info/inful/sitepack/internal/filter"
	"git.home.luguber.info/inful/sitepack/internal/fsutil"
	"git.home.luguber.info/inful/sitepack/internal/git"
	"git.home.luguber.info/inful/sitepack/internal/linkverify"
	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/metrics"
	"git.home.luguber.info/inful/sitepack/internal/observability"
	"git.home.luguber.info/inful/sitepack/internal/resolver"
	"git.home.luguber.info/inful/sitepack/internal/templates"
)

// BuildService executes site builds.
type BuildService interface {
	// Run executes all stages for req. The returned report is never nil;
	// the error is the build's terminal *StageError, if any.
	Run(ctx context.Context, req BuildRequest) (*Report, error)
}

// BuildRequest contains all inputs of one build.
type BuildRequest struct {
	// Site is the loaded site manifest.
	Site *config.Site

	// InitialContext seeds every template's data. The manifest's global
	// context is layered on top of it.
	InitialContext map[string]any

	// Trigger records why the build ran (build, watch or schedule).
	Trigger string
}

// Packer produces the published assets and the cache manifest.
type Packer interface {
	Pack(ctx context.Context) (*assets.Result, error)
}

// PackerFactory creates the packer for one build.
type PackerFactory func(site *config.Site, registry *filter.Registry, rec metrics.Recorder) Packer

// DefaultPackerFactory returns the asset packer configured from site.
func DefaultPackerFactory(site *config.Site, registry *filter.Registry, rec metrics.Recorder) Packer {
	return assets.NewPacker(assets.Config{
		ManifestPath:      site.AssetManifest,
		CacheManifestPath: site.AssetCacheManifest,
		AssetDir:          site.AssetDirectory,
		StaticDir:         site.StaticDirectory,
		InternalDir:       site.InternalDirectory,
	}, registry).WithRecorder(rec)
}

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	packerFactory PackerFactory
	registry      *filter.Registry
	recorder      metrics.Recorder
	observers     []Observer
}

// NewBuildService creates a service using the asset packer and the
// built-in filters.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		packerFactory: DefaultPackerFactory,
		recorder:      metrics.NoopRecorder{},
	}
}

// WithPackerFactory replaces the packer.
func (s *DefaultBuildService) WithPackerFactory(f PackerFactory) *DefaultBuildService {
	if f != nil {
		s.packerFactory = f
	}
	return s
}

// WithRegistry sets the filter registry. Without one, each build uses the
// built-in filters with the manifest's stylesheet format.
func (s *DefaultBuildService) WithRegistry(r *filter.Registry) *DefaultBuildService {
	s.registry = r
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(rec metrics.Recorder) *DefaultBuildService {
	if rec != nil {
		s.recorder = rec
	}
	return s
}

// WithObserver adds a lifecycle observer.
func (s *DefaultBuildService) WithObserver(o Observer) *DefaultBuildService {
	if o != nil {
		s.observers = append(s.observers, o)
	}
	return s
}

// buildState is the data passed between stages.
type buildState struct {
	site           *config.Site
	initialContext map[string]any
	packer         Packer
	report         *Report
	observer       Observer
	cache          *assets.CacheManifest
	engine         *templates.Engine
	rendered       []string
}

// Run implements BuildService.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*Report, error) {
	site := req.Site
	if site == nil {
		return nil, sperrors.InternalError("build request without site", nil)
	}

	report := newReport(uuid.NewString(), site.Path, req.Trigger)
	ctx = observability.WithBuildID(ctx, report.BuildID)
	observer := multiObserver(append([]Observer{recorderObserver{rec: s.recorder}}, s.observers...))

	rev, err := git.ReadRevision(site.Dir())
	if err != nil {
		observability.WarnContext(ctx, "Could not read source revision", logfields.Error(err))
	}
	report.Revision = rev

	observer.OnBuildStart(ctx, report)
	if err := ctx.Err(); err != nil {
		se := &StageError{Kind: StageErrorCanceled, Stage: StagePackAssets, Err: fmt.Errorf("%w: %w", ErrCanceled, err)}
		report.recordStage(StagePackAssets, 0, StageResultCanceled)
		return s.complete(ctx, site, report, observer, se)
	}
	// A started build is never interrupted.
	ctx = context.WithoutCancel(ctx)

	registry := s.registry
	if registry == nil {
		format, ferr := filter.ParseStylesheetFormat(site.StylesheetFormat)
		if ferr != nil {
			return s.complete(ctx, site, report, observer, sperrors.ConfigInvalid(site.Path, ferr))
		}
		registry = filter.NewDefaultRegistry(format).WithRecorder(s.recorder)
	}

	bs := &buildState{
		site:           site,
		initialContext: req.InitialContext,
		packer:         s.packerFactory(site, registry, s.recorder),
		report:         report,
		observer:       observer,
	}

	ctx, span := observability.StartBuildSpan(ctx, report.BuildID)
	observability.InfoContext(ctx, "Build started",
		logfields.Path(site.Path),
		logfields.Trigger(req.Trigger),
		logfields.Revision(rev.Short()))
	err = runStages(ctx, bs, pipeline(site).Build())
	observability.EndSpan(span, err)
	return s.complete(ctx, site, report, observer, err)
}

func (s *DefaultBuildService) complete(ctx context.Context, site *config.Site, report *Report, observer Observer, err error) (*Report, error) {
	report.finish(err)
	if perr := report.Persist(site.InternalDirectory); perr != nil {
		observability.WarnContext(ctx, "Failed to persist build report", logfields.Error(perr))
	}
	observer.OnBuildComplete(ctx, report)
	if err != nil {
		observability.ErrorContext(ctx, "Build failed",
			logfields.Outcome(string(report.Outcome)),
			logfields.Stage(string(report.ErrorStage)),
			logfields.Error(err))
		return report, err
	}
	observability.InfoContext(ctx, "Build completed",
		logfields.Outcome(string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Milliseconds())),
		logfields.Count(len(report.RenderedPages)))
	return report, nil
}

func pipeline(site *config.Site) *Pipeline {
	return NewPipeline().
		Add(StagePackAssets, stagePackAssets).
		Add(StageLoadCacheManifest, stageLoadCacheManifest).
		Add(StageInitTemplates, stageInitTemplates).
		Add(StageRenderTemplates, stageRenderTemplates).
		Add(StageCopyFiles, stageCopyFiles).
		AddIf(site.VerifyAssetLinks, StageVerifyAssetLinks, stageVerifyAssetLinks)
}

func stagePackAssets(ctx context.Context, bs *buildState) error {
	res, err := bs.packer.Pack(ctx)
	if res != nil {
		bs.report.AssetsPacked = append(bs.report.AssetsPacked, res.Packed...)
		bs.report.AssetsSkipped = append(bs.report.AssetsSkipped, res.Skipped...)
	}
	if err == nil {
		return nil
	}
	var ae *assets.Error
	switch {
	case errors.As(err, &ae):
		return sperrors.FilterFailed(ae.Asset, ae.Filter, err)
	case errors.Is(err, assets.ErrInvalidManifest):
		return sperrors.ConfigInvalid(bs.site.AssetManifest, err)
	default:
		return sperrors.BuildFailed(string(StagePackAssets), err)
	}
}

func stageLoadCacheManifest(_ context.Context, bs *buildState) error {
	cache, err := assets.LoadCacheManifest(bs.site.AssetCacheManifest)
	if err != nil {
		return sperrors.FileSystemError("load cache manifest", err)
	}
	bs.cache = cache
	return nil
}

func stageInitTemplates(ctx context.Context, bs *buildState) error {
	r := resolver.New(bs.cache, bs.site.StaticBaseURL)
	engine, err := templates.Load(bs.site.TemplateDirectory, r.FuncMap())
	if err != nil {
		return sperrors.TemplateFailed(bs.site.TemplateDirectory, err)
	}
	bs.engine = engine
	observability.DebugContext(ctx, "Templates loaded", logfields.Count(len(engine.Names())))
	return nil
}

func stageRenderTemplates(ctx context.Context, bs *buildState) error {
	base := templates.MergeContext(bs.initialContext, bs.site.Context)
	for _, entry := range bs.site.Templates {
		data := templates.MergeContext(base, entry.Context)
		out := filepath.Join(bs.site.HTMLOutputDirectory, filepath.FromSlash(entry.Output))
		if err := bs.engine.RenderToFile(entry.Template, out, data); err != nil {
			return sperrors.TemplateFailed(entry.Template, err)
		}
		bs.rendered = append(bs.rendered, out)
		bs.report.RenderedPages = append(bs.report.RenderedPages, entry.Output)
		observability.DebugContext(ctx, "Template rendered",
			logfields.Template(entry.Template),
			logfields.Output(entry.Output))
	}
	return nil
}

func stageCopyFiles(ctx context.Context, bs *buildState) error {
	for _, rel := range bs.site.CopyPaths {
		src := filepath.Join(bs.site.CopyInputDirectory, filepath.FromSlash(rel))
		dst := filepath.Join(bs.site.CopyOutputDirectory, filepath.FromSlash(rel))
		info, err := os.Stat(src)
		if err != nil {
			return sperrors.FileSystemError("copy "+rel, err)
		}
		n := 1
		if info.IsDir() {
			n, err = fsutil.CopyDir(src, dst)
		} else {
			err = fsutil.CopyFile(src, dst)
		}
		if err != nil {
			return sperrors.FileSystemError("copy "+rel, err)
		}
		bs.report.FilesCopied += n
		observability.DebugContext(ctx, "Copied", logfields.Path(rel), logfields.Count(n))
	}
	return nil
}

func stageVerifyAssetLinks(ctx context.Context, bs *buildState) error {
	v := linkverify.Verifier{BaseURL: bs.site.StaticBaseURL, StaticDir: bs.site.StaticDirectory}
	checked, err := v.Verify(bs.rendered)
	bs.report.LinksChecked = checked
	if err != nil {
		return sperrors.BuildFailed(string(StageVerifyAssetLinks), err)
	}
	observability.DebugContext(ctx, "Asset links verified", logfields.Count(checked))
	return nil
}
