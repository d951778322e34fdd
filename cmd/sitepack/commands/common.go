package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitepack/internal/build"
	"git.home.luguber.info/inful/sitepack/internal/config"
	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
	"git.home.luguber.info/inful/sitepack/internal/eventstore"
	"git.home.luguber.info/inful/sitepack/internal/events"
	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/metrics"
	"git.home.luguber.info/inful/sitepack/internal/observability"
	"git.home.luguber.info/inful/sitepack/internal/retry"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Manifest  string           `short:"m" help:"Site manifest path. Defaults to the first static_website.{yaml,yml,json,hcl} in the working directory."`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text|json)" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Pack assets, render templates and copy files once"`
	Watch    WatchCmd    `cmd:"" help:"Build, then rebuild whenever sources change"`
	Schedule ScheduleCmd `cmd:"" help:"Build, then rebuild on a fixed schedule"`
	Filters  FiltersCmd  `cmd:"" help:"List the registered asset filters"`
	History  HistoryCmd  `cmd:"" help:"Show recent builds recorded in the history database"`
	Init     InitCmd     `cmd:"" help:"Write an example site manifest"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	} else if env := os.Getenv("SITEPACK_LOG_LEVEL"); env != "" {
		l, err := observability.ParseLevel(env)
		if err != nil {
			return sperrors.ValidationFailed("SITEPACK_LOG_LEVEL", err.Error())
		}
		level = l
	}
	logger, err := observability.NewLogger(os.Stderr, c.LogFormat, level)
	if err != nil {
		return sperrors.ValidationFailed("log-format", err.Error())
	}
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

// manifestPath resolves the manifest flag against the working directory.
func (c *CLI) manifestPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", sperrors.FileSystemError("get working directory", err)
	}
	p, err := config.FindManifest(wd, c.Manifest)
	if err != nil {
		return "", sperrors.ConfigNotFound(wd).WithContext("reason", err.Error())
	}
	return p, nil
}

// loadSite reads and validates the site manifest.
func (c *CLI) loadSite() (*config.Site, error) {
	p, err := c.manifestPath()
	if err != nil {
		return nil, err
	}
	site, err := config.Load(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sperrors.ConfigNotFound(p)
		}
		return nil, sperrors.ConfigInvalid(p, err)
	}
	return site, nil
}

// BuildFlags are shared by every command that builds.
type BuildFlags struct {
	MetricsFile string            `name:"metrics-file" help:"Write Prometheus metrics to this textfile after each build (overrides metrics.textfile)"`
	Var         map[string]string `name:"var" help:"Initial template context value (key=value); the manifest context overrides it"`
}

// natsConnectPolicy bounds how long startup waits for the event broker.
var natsConnectPolicy = retry.NewPolicy(retry.ModeExponential, 250*time.Millisecond, 2*time.Second, 3)

// siteBuilder owns everything that outlives a single build: the build
// service with its observers, the metrics registry and the tracer.
type siteBuilder struct {
	cli         *CLI
	flags       BuildFlags
	service     *build.DefaultBuildService
	recorder    *metrics.PrometheusRecorder
	metricsFile string
	closers     []func(context.Context) error
}

// newSiteBuilder wires the optional history, events, metrics and tracing
// integrations declared in site.
func newSiteBuilder(cli *CLI, flags BuildFlags, site *config.Site) (*siteBuilder, error) {
	sb := &siteBuilder{cli: cli, flags: flags, service: build.NewBuildService()}

	tp, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled: site.Tracing.Enabled,
		File:    site.Tracing.File,
	})
	if err != nil {
		return nil, sperrors.ConfigInvalid(site.Path, err)
	}
	sb.closers = append(sb.closers, tp.Shutdown)

	sb.metricsFile = site.Metrics.Textfile
	if flags.MetricsFile != "" {
		sb.metricsFile = flags.MetricsFile
	}
	if sb.metricsFile != "" {
		sb.recorder = metrics.NewPrometheusRecorder(prometheus.NewRegistry())
		sb.service.WithRecorder(sb.recorder)
	}

	if site.History.Database != "" {
		store, err := eventstore.NewSQLiteStore(site.History.Database)
		if err != nil {
			sb.close(context.Background())
			return nil, sperrors.FileSystemError("open history database", err)
		}
		sb.service.WithObserver(build.NewEventStoreObserver(store))
		sb.closers = append(sb.closers, func(context.Context) error { return store.Close() })
	}

	if site.Events.NATSURL != "" {
		var pub *events.Publisher
		err := natsConnectPolicy.Do(context.Background(), "nats connect", func() error {
			var cerr error
			pub, cerr = events.Connect(site.Events.NATSURL, site.Events.Subject)
			return cerr
		})
		if err != nil {
			// Builds still run without event delivery.
			slog.Warn("Build events disabled", logfields.Error(err))
		} else {
			sb.service.WithObserver(build.NewPublishObserver(pub))
			sb.closers = append(sb.closers, func(context.Context) error { pub.Close(); return nil })
		}
	}
	return sb, nil
}

// run reloads the manifest and builds the site once.
func (sb *siteBuilder) run(ctx context.Context, trigger string) (*build.Report, error) {
	site, err := sb.cli.loadSite()
	if err != nil {
		return nil, err
	}
	initial := make(map[string]any, len(sb.flags.Var))
	for k, v := range sb.flags.Var {
		initial[k] = v
	}
	report, err := sb.service.Run(ctx, build.BuildRequest{Site: site, InitialContext: initial, Trigger: trigger})
	if sb.recorder != nil {
		if merr := os.MkdirAll(filepath.Dir(sb.metricsFile), 0o750); merr != nil {
			slog.Warn("Failed to create metrics directory", logfields.Error(merr))
		} else if merr := sb.recorder.WriteTextfile(sb.metricsFile); merr != nil {
			slog.Warn("Failed to write metrics", logfields.Path(sb.metricsFile), logfields.Error(merr))
		}
	}
	return report, err
}

func (sb *siteBuilder) close(ctx context.Context) {
	for i := len(sb.closers) - 1; i >= 0; i-- {
		if err := sb.closers[i](ctx); err != nil {
			slog.Warn("Shutdown step failed", logfields.Error(err))
		}
	}
}

func printReport(w io.Writer, r *build.Report) {
	if r == nil {
		return
	}
	_, _ = fmt.Fprintln(w, r.Summary())
}
