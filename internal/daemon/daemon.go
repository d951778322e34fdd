package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// Trigger names recorded on builds started by this package.
const (
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	Paths    WatchPaths
	Debounce DebouncerConfig
}

// Watch builds once, then rebuilds whenever a watched file changes. It
// returns when ctx is done and any running build has finished.
func Watch(ctx context.Context, build BuildFunc, opts WatchOptions) error {
	if build == nil {
		return errors.New("build function is required")
	}
	if opts.Debounce == (DebouncerConfig{}) {
		opts.Debounce = DefaultDebouncerConfig()
	}

	runner := NewRunner(build)
	_ = runner.Once(ctx, TriggerWatch)

	debouncer, err := NewDebouncer(opts.Debounce, func(string) { runner.Request(TriggerWatch) })
	if err != nil {
		return err
	}
	watcher, err := NewWatcher(opts.Paths, debouncer.Notify)
	if err != nil {
		return err
	}

	slog.Info("Watching for changes", logfields.Count(len(opts.Paths.Roots)+len(opts.Paths.Dirs)))
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		debouncer.Run(ctx)
	}()
	err = watcher.Run(ctx)
	wg.Wait()
	slog.Info("Watch stopped")
	return err
}

// ScheduleOptions configures Schedule. Exactly one of Every and Cron is set.
type ScheduleOptions struct {
	Every time.Duration
	Cron  string
}

// Schedule builds once, then rebuilds on the configured schedule until ctx
// is done.
func Schedule(ctx context.Context, build BuildFunc, opts ScheduleOptions) error {
	if build == nil {
		return errors.New("build function is required")
	}
	if (opts.Every > 0) == (opts.Cron != "") {
		return errors.New("exactly one of interval or cron expression is required")
	}

	runner := NewRunner(build)
	_ = runner.Once(ctx, TriggerSchedule)

	s, err := NewScheduler()
	if err != nil {
		return err
	}
	task := func() { runner.Request(TriggerSchedule) }
	if opts.Every > 0 {
		_, err = s.ScheduleEvery("site-build", opts.Every, task)
	} else {
		_, err = s.ScheduleCron("site-build", opts.Cron, task)
	}
	if err != nil {
		_ = s.Stop(ctx)
		return err
	}

	s.Start()
	runner.Run(ctx)
	return s.Stop(ctx)
}
