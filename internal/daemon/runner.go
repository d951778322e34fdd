package daemon

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// BuildFunc runs one build. trigger names what caused it.
type BuildFunc func(ctx context.Context, trigger string) error

// Runner executes builds one at a time. Requests made while a build is
// running collapse into exactly one follow-up build.
type Runner struct {
	build BuildFunc
	reqCh chan string

	mu      sync.Mutex
	running bool
	builds  int
	lastErr error
}

// NewRunner returns a runner for build.
func NewRunner(build BuildFunc) *Runner {
	return &Runner{build: build, reqCh: make(chan string, 1)}
}

// Request asks for a build. It never blocks; a request made while another
// one is already queued is dropped.
func (r *Runner) Request(trigger string) {
	select {
	case r.reqCh <- trigger:
	default:
	}
}

// Running reports whether a build is executing.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns the number of finished builds and the last build error.
func (r *Runner) Stats() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds, r.lastErr
}

// Run processes requests until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-r.reqCh:
			// select picks randomly when both are ready.
			if ctx.Err() != nil {
				return
			}
			_ = r.execute(ctx, trigger)
		}
	}
}

// Once runs a single build synchronously.
func (r *Runner) Once(ctx context.Context, trigger string) error {
	return r.execute(ctx, trigger)
}

func (r *Runner) execute(ctx context.Context, trigger string) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	err := r.build(ctx, trigger)

	r.mu.Lock()
	r.running = false
	r.builds++
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		slog.Warn("Build failed; waiting for the next trigger",
			logfields.Trigger(trigger),
			logfields.Error(err))
	}
	return err
}
