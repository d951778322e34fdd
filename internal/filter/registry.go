package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/metrics"
	"git.home.luguber.info/inful/sitepack/internal/observability"
)

// Names of the built-in filters as used in asset manifests.
const (
	NameRunExecutable = "RUN_EXECUTABLE"
	NameSCSS2CSS      = "SCSS2CSS"
	NameMarkdown2HTML = "MARKDOWN2HTML"
)

// Registry maps filter names to implementations. It is populated before a
// build starts and only read afterwards, so a built registry is safe to share.
type Registry struct {
	filters  map[string]Filter
	recorder metrics.Recorder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Filter), recorder: metrics.NoopRecorder{}}
}

// NewDefaultRegistry registers the built-in filters. The stylesheet format
// applies to every SCSS2CSS invocation.
func NewDefaultRegistry(format StylesheetFormat) *Registry {
	r := NewRegistry()
	// Built-in names are distinct constants; Register cannot fail here.
	_ = r.Register(NameRunExecutable, NewExecutableFilter())
	_ = r.Register(NameSCSS2CSS, NewStylesheetFilter(format))
	_ = r.Register(NameMarkdown2HTML, NewMarkdownFilter())
	return r
}

// WithRecorder sets the metrics recorder used by Invoke.
func (r *Registry) WithRecorder(rec metrics.Recorder) *Registry {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	r.recorder = rec
	return r
}

// Register adds a filter under an exact, case-sensitive name.
func (r *Registry) Register(name string, f Filter) error {
	if name == "" {
		return errors.New("filter name is empty")
	}
	if f == nil {
		return fmt.Errorf("filter %s is nil", name)
	}
	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("filter %s already registered", name)
	}
	r.filters[name] = f
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.filters[name]
	return ok
}

// Lookup returns the filter registered under name.
func (r *Registry) Lookup(name string) (Filter, bool) {
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.filters))
	for n := range r.filters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ConfigKey returns the construction-time settings of the named filter, or ""
// when the filter has none.
func (r *Registry) ConfigKey(name string) string {
	if c, ok := r.filters[name].(Configured); ok {
		return c.ConfigKey()
	}
	return ""
}

// Dependencies returns the files the named filter reads besides inputPaths.
// Filters without implicit dependencies report none.
func (r *Registry) Dependencies(name string, inputPaths []string, opts Options) ([]string, error) {
	f, ok := r.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	if d, ok := f.(DependencyLister); ok {
		return d.Dependencies(slices.Clone(inputPaths), opts)
	}
	return nil, nil
}

// Invoke runs the named filter. Errors from the filter are returned as-is
// apart from the registered name being recorded on *Error values.
func (r *Registry) Invoke(ctx context.Context, name string, inputPaths []string, outputPath string, opts Options) error {
	f, ok := r.filters[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}

	ctx, span := observability.StartFilterSpan(ctx, name, outputPath, len(inputPaths))
	t0 := time.Now()
	err := f.ProcessAssetFile(ctx, slices.Clone(inputPaths), outputPath, opts)
	dur := time.Since(t0)

	var fe *Error
	if errors.As(err, &fe) && fe.Filter == "" {
		fe.Filter = name
	}
	r.recorder.ObserveFilterDuration(name, dur, err == nil)
	observability.EndSpan(span, err)

	observability.DebugContext(ctx, "Filter invoked",
		logfields.Filter(name),
		logfields.Output(outputPath),
		logfields.Count(len(inputPaths)),
		logfields.DurationMS(float64(dur.Milliseconds())),
		logfields.Error(err),
		slog.Bool("success", err == nil))
	return err
}
