package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/daemon"
	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags
	Quiet    time.Duration `name:"quiet" help:"Wait this long after the last change before rebuilding" default:"300ms"`
	MaxDelay time.Duration `name:"max-delay" help:"Rebuild at the latest this long after the first change of a burst" default:"3s"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	site, err := root.loadSite()
	if err != nil {
		return err
	}
	sb, err := newSiteBuilder(root, w.BuildFlags, site)
	if err != nil {
		return err
	}
	defer sb.close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = daemon.Watch(ctx, builderFunc(g, sb), daemon.WatchOptions{
		Paths:    daemon.SitePaths(site),
		Debounce: daemon.DebouncerConfig{QuietWindow: w.Quiet, MaxDelay: w.MaxDelay},
	})
	if err != nil {
		return sperrors.Wrap(err, sperrors.CategoryRuntime, sperrors.SeverityFatal, "watch failed")
	}
	return nil
}

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	BuildFlags
	Every time.Duration `name:"every" help:"Rebuild interval, e.g. 15m" xor:"when"`
	Cron  string        `name:"cron" help:"Rebuild on a five-field cron expression" xor:"when"`
}

func (s *ScheduleCmd) Run(g *Global, root *CLI) error {
	if s.Every <= 0 && s.Cron == "" {
		return sperrors.ValidationFailed("every", "one of --every or --cron is required")
	}
	site, err := root.loadSite()
	if err != nil {
		return err
	}
	sb, err := newSiteBuilder(root, s.BuildFlags, site)
	if err != nil {
		return err
	}
	defer sb.close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = daemon.Schedule(ctx, builderFunc(g, sb), daemon.ScheduleOptions{Every: s.Every, Cron: s.Cron})
	if err != nil {
		return sperrors.Wrap(err, sperrors.CategoryRuntime, sperrors.SeverityFatal, "schedule failed")
	}
	return nil
}

func builderFunc(g *Global, sb *siteBuilder) daemon.BuildFunc {
	return func(ctx context.Context, trigger string) error {
		report, err := sb.run(ctx, trigger)
		printReport(g.out(), report)
		return err
	}
}
