package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitepack/internal/filter"
	"git.home.luguber.info/inful/sitepack/internal/fsutil"
	"git.home.luguber.info/inful/sitepack/internal/logfields"
	"git.home.luguber.info/inful/sitepack/internal/metrics"
	"git.home.luguber.info/inful/sitepack/internal/observability"
)

// hashLen is the number of hex digits of the content hash in published names.
const hashLen = 8

// Error reports a failure while packing one asset.
type Error struct {
	Asset  string
	Filter string
	Err    error
}

func (e *Error) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("asset %s: %v", e.Asset, e.Err)
	}
	return fmt.Sprintf("asset %s (filter %s): %v", e.Asset, e.Filter, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether the asset failed because of its manifest
// declaration rather than its content or tooling.
func (e *Error) IsConfigError() bool {
	if errors.Is(e.Err, filter.ErrUnknownFilter) {
		return true
	}
	var fe *filter.Error
	return errors.As(e.Err, &fe) && fe.IsConfigError()
}

// Config locates the packer's inputs and outputs.
type Config struct {
	ManifestPath      string
	CacheManifestPath string
	AssetDir          string
	StaticDir         string
	InternalDir       string
}

// Result summarizes one packing run.
type Result struct {
	Packed  []string
	Skipped []string
	Cache   *CacheManifest
}

// Packer turns the asset manifest into published artifacts.
type Packer struct {
	cfg      Config
	registry *filter.Registry
	recorder metrics.Recorder
}

// NewPacker returns a packer dispatching to the filters in registry.
func NewPacker(cfg Config, registry *filter.Registry) *Packer {
	return &Packer{cfg: cfg, registry: registry, recorder: metrics.NoopRecorder{}}
}

// WithRecorder sets the metrics recorder.
func (p *Packer) WithRecorder(rec metrics.Recorder) *Packer {
	if rec != nil {
		p.recorder = rec
	}
	return p
}

// Pack processes every asset in dependency order. Assets whose fingerprint
// matches the previous run and whose published file still exists are not
// rebuilt. The cache manifest is written only when every asset succeeded.
func (p *Packer) Pack(ctx context.Context) (*Result, error) {
	m, err := LoadManifest(p.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	order, err := m.Order()
	if err != nil {
		return nil, err
	}

	prev := loadPreviousCache(p.cfg.CacheManifestPath)
	next := NewCacheManifest()
	res := &Result{Cache: next}

	for _, name := range order {
		asset := m.Assets[name]
		actx := observability.WithAsset(ctx, name)
		skipped, err := p.packOne(actx, name, asset, prev, next)
		if err != nil {
			p.recorder.IncAssetResult(metrics.AssetFailed)
			return res, &Error{Asset: name, Filter: asset.Filter, Err: err}
		}
		if skipped {
			res.Skipped = append(res.Skipped, name)
			p.recorder.IncAssetResult(metrics.AssetSkipped)
		} else {
			res.Packed = append(res.Packed, name)
			p.recorder.IncAssetResult(metrics.AssetPacked)
		}
	}

	if err := next.Save(p.cfg.CacheManifestPath); err != nil {
		return res, err
	}
	observability.InfoContext(ctx, "Assets packed",
		logfields.Count(len(res.Packed)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (p *Packer) packOne(ctx context.Context, name string, asset Asset, prev, next *CacheManifest) (bool, error) {
	inputs, err := p.resolveInputs(asset, next)
	if err != nil {
		return false, err
	}
	if asset.Filter != "" && !p.registry.Has(asset.Filter) {
		return false, fmt.Errorf("%w: %s", filter.ErrUnknownFilter, asset.Filter)
	}
	opts, err := filter.ParseOptions(asset.Options)
	if err != nil {
		return false, &filter.Error{Kind: filter.KindInvalidOptionType, Filter: asset.Filter, Err: err}
	}
	fp, err := p.fingerprint(asset, inputs, opts)
	if err != nil {
		return false, err
	}

	if old, ok := prev.Entries[name]; ok && old.Fingerprint == fp {
		if _, err := os.Stat(p.published(old.Path)); err == nil {
			next.Entries[name] = old
			observability.DebugContext(ctx, "Asset up to date", logfields.Path(old.Path))
			return true, nil
		}
	}

	workDir := filepath.Join(p.cfg.InternalDir, "work", name)
	if err := os.RemoveAll(workDir); err != nil {
		return false, fmt.Errorf("clean work directory: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return false, fmt.Errorf("create work directory: %w", err)
	}
	workOut := filepath.Join(workDir, path.Base(asset.Target))

	t0 := time.Now()
	if asset.Filter == "" {
		if err := fsutil.CopyFile(inputs[0], workOut); err != nil {
			return false, fmt.Errorf("copy %s: %w", inputs[0], err)
		}
	} else if err := p.registry.Invoke(ctx, asset.Filter, inputs, workOut, opts); err != nil {
		return false, err
	}

	rel, err := p.publish(workOut, asset.Target)
	if err != nil {
		return false, err
	}
	next.Entries[name] = CacheEntry{Path: rel, Fingerprint: fp, Filter: asset.Filter}
	observability.InfoContext(ctx, "Asset packed",
		logfields.Filter(asset.Filter),
		logfields.Path(rel),
		logfields.DurationMS(float64(time.Since(t0).Milliseconds())))
	return false, nil
}

func (p *Packer) resolveInputs(asset Asset, done *CacheManifest) ([]string, error) {
	out := make([]string, 0, len(asset.Inputs))
	for _, in := range asset.Inputs {
		if ref, ok := strings.CutPrefix(in, RefPrefix); ok {
			e, ok := done.Entries[ref]
			if !ok {
				return nil, fmt.Errorf("reference %s%s has not been packed", RefPrefix, ref)
			}
			out = append(out, p.published(e.Path))
			continue
		}
		out = append(out, filepath.Join(p.cfg.AssetDir, filepath.FromSlash(in)))
	}
	return out, nil
}

func (p *Packer) published(rel string) string {
	return filepath.Join(p.cfg.StaticDir, filepath.FromSlash(rel))
}

// publish copies the filter output to its content-addressed name and returns
// the slash path relative to the static directory.
func (p *Packer) publish(workOut, target string) (string, error) {
	sum, err := fsutil.HashFile(workOut)
	if err != nil {
		return "", fmt.Errorf("hash output: %w", err)
	}
	rel := HashedName(target, sum[:hashLen])
	data, err := os.ReadFile(workOut) // #nosec G304 -- workOut lives in the internal directory
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	if err := fsutil.WriteFileAtomic(p.published(rel), data, 0o644); err != nil {
		return "", fmt.Errorf("publish %s: %w", rel, err)
	}
	return rel, nil
}

// HashedName inserts hash before the extension of target:
// css/style.css becomes css/style-<hash>.css.
func HashedName(target, hash string) string {
	dir, base := path.Split(target)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// Dotfiles such as ".htaccess" have no stem.
		stem, ext = base, ""
	}
	return dir + stem + "-" + hash + ext
}

// fingerprint covers everything that determines the published bytes: the
// filter and its construction-time settings, the target, the options, the
// declared inputs and any files the filter reads implicitly.
func (p *Packer) fingerprint(asset Asset, inputs []string, opts filter.Options) (string, error) {
	h := sha256.New()
	rawOpts, err := json.Marshal(asset.Options)
	if err != nil {
		return "", fmt.Errorf("fingerprint options: %w", err)
	}
	fmt.Fprintf(h, "filter=%s\x00config=%s\x00target=%s\x00options=%s\x00",
		asset.Filter, p.registry.ConfigKey(asset.Filter), asset.Target, rawOpts)
	for i, in := range inputs {
		fmt.Fprintf(h, "input=%s\x00", asset.Inputs[i])
		if err := hashInto(h, in); err != nil {
			return "", err
		}
	}
	if asset.Filter == "" {
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	deps, err := p.registry.Dependencies(asset.Filter, inputs, opts)
	if err != nil {
		return "", err
	}
	for _, dep := range deps {
		fmt.Fprintf(h, "dep=%s\x00", p.depName(dep))
		if err := hashInto(h, dep); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// depName keeps fingerprints stable when the site directory moves.
func (p *Packer) depName(dep string) string {
	if rel, err := filepath.Rel(p.cfg.AssetDir, dep); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return dep
}

func hashInto(w io.Writer, file string) error {
	f, err := os.Open(file) // #nosec G304 -- input declared in the asset manifest
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	_, err = io.Copy(w, f)
	return err
}
