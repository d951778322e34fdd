// Package filter defines the asset filter contract, the option model passed
// to filters, the built-in filters and the name-keyed registry the packer
// consults.
//
// A filter turns input files into exactly one output file:
//
//	ProcessAssetFile(ctx, inputPaths, outputPath, opts) error
//
// Filters are pure with respect to their declared inputs and options; they
// never decide whether an asset needs rebuilding and never keep state between
// invocations. Failures are reported as *Error with a Kind that separates
// manifest misconfiguration (input count, option errors) from execution
// failures (i/o, exit status, compilation).
package filter

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitepack/internal/fsutil"
)

// Filter transforms input files into one output file.
//
// inputPaths is never empty. On success a file exists at outputPath; on
// failure no partially written file is left there.
type Filter interface {
	ProcessAssetFile(ctx context.Context, inputPaths []string, outputPath string, opts Options) error
}

// Configured is implemented by filters whose output depends on settings fixed
// at construction. ConfigKey changes whenever those settings do.
type Configured interface {
	ConfigKey() string
}

// DependencyLister is implemented by filters that read files beyond their
// declared inputs, such as stylesheet partials. Dependencies returns every
// such file in a stable order.
type DependencyLister interface {
	Dependencies(inputPaths []string, opts Options) ([]string, error)
}

// Func adapts a plain function to the Filter interface.
type Func func(ctx context.Context, inputPaths []string, outputPath string, opts Options) error

func (f Func) ProcessAssetFile(ctx context.Context, inputPaths []string, outputPath string, opts Options) error {
	return f(ctx, inputPaths, outputPath, opts)
}

func ensureParentDir(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ioError("create output directory", err)
		}
	}
	return nil
}

// writeOutput writes data next to path and renames it into place so readers
// never observe a half-written output.
func writeOutput(path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return ioError("write output "+path, err)
	}
	return nil
}
