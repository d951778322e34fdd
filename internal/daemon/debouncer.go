package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// DebouncerConfig controls how change bursts are coalesced.
type DebouncerConfig struct {
	// QuietWindow is how long no new change must arrive before emitting.
	QuietWindow time.Duration
	// MaxDelay bounds how long a steady stream of changes can postpone
	// the emit.
	MaxDelay time.Duration
}

// DefaultDebouncerConfig suits editors that write files in several steps.
func DefaultDebouncerConfig() DebouncerConfig {
	return DebouncerConfig{QuietWindow: 300 * time.Millisecond, MaxDelay: 3 * time.Second}
}

// Debouncer coalesces bursts of change notifications into a single emit.
// Notify may be called from any goroutine; Run must be called once.
type Debouncer struct {
	cfg   DebouncerConfig
	emit  func(reason string)
	reqCh chan string
}

// NewDebouncer returns a debouncer that calls emit with the last reason
// of each burst.
func NewDebouncer(cfg DebouncerConfig, emit func(reason string)) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, errors.New("quiet window must be > 0")
	}
	if cfg.MaxDelay <= 0 {
		return nil, errors.New("max delay must be > 0")
	}
	if emit == nil {
		return nil, errors.New("emit function is required")
	}
	return &Debouncer{cfg: cfg, emit: emit, reqCh: make(chan string, 64)}, nil
}

// Notify records a change. It does not block; when the buffer is full the
// change is already covered by a pending emit.
func (d *Debouncer) Notify(reason string) {
	select {
	case d.reqCh <- reason:
	default:
	}
}

// Run coalesces notifications until ctx is done. Pending changes are
// dropped on shutdown.
func (d *Debouncer) Run(ctx context.Context) {
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		last   string
		count  int
	)

	fire := func(cause string) {
		slog.Debug("Debounced changes",
			slog.String("cause", cause),
			slog.String("reason", last),
			logfields.Count(count))
		d.emit(last)
		quietTimer.Stop()
		maxTimer.Stop()
		quietC, maxC = nil, nil
		count = 0
	}

	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-d.reqCh:
			last = reason
			count++
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
			if count == 1 {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}
		case <-quietC:
			fire("quiet")
		case <-maxC:
			fire("max_delay")
		}
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
