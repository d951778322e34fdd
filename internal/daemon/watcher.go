package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitepack/internal/config"
	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// WatchPaths lists what a watcher observes for one site.
type WatchPaths struct {
	// Recursive roots: every directory below them is watched.
	Roots []string
	// Dirs are watched without descending, for manifest files.
	Dirs []string
	// Excluded subtrees never trigger a rebuild; builds write into them.
	Excluded []string
}

// SitePaths derives the watch set from a loaded site manifest.
func SitePaths(site *config.Site) WatchPaths {
	var wp WatchPaths
	for _, d := range []string{site.AssetDirectory, site.TemplateDirectory, site.CopyInputDirectory} {
		if d != "" && !slices.Contains(wp.Roots, d) {
			wp.Roots = append(wp.Roots, d)
		}
	}
	for _, f := range []string{site.Path, site.AssetManifest} {
		if f == "" {
			continue
		}
		if d := filepath.Dir(f); !slices.Contains(wp.Dirs, d) {
			wp.Dirs = append(wp.Dirs, d)
		}
	}
	for _, d := range []string{site.InternalDirectory, site.StaticDirectory, site.HTMLOutputDirectory, site.CopyOutputDirectory} {
		if d != "" && !slices.Contains(wp.Excluded, d) {
			wp.Excluded = append(wp.Excluded, d)
		}
	}
	return wp
}

// Watcher reports relevant filesystem changes to a callback.
type Watcher struct {
	fs       *fsnotify.Watcher
	paths    WatchPaths
	onChange func(path string)
}

// NewWatcher registers every directory in paths.
func NewWatcher(paths WatchPaths, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{fs: fw, paths: paths, onChange: onChange}
	for _, root := range paths.Roots {
		if err := w.addRecursive(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	for _, d := range paths.Dirs {
		if err := fw.Add(d); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return w, nil
}

// Run forwards events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.fs.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addRecursive(ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.onChange(ev.Name)
}

func (w *Watcher) ignored(path string) bool {
	if shouldIgnoreName(filepath.Base(path)) {
		return true
	}
	for _, ex := range w.paths.Excluded {
		if within(ex, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && (shouldIgnoreName(d.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreName matches hidden entries and editor temp/swap files.
func shouldIgnoreName(base string) bool {
	return strings.HasPrefix(base, ".") ||
		strings.HasPrefix(base, "#") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp")
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
