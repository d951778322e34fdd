// Package assets packs source assets into content-addressed artifacts.
//
// An asset manifest declares logical assets:
//
//	assets:
//	  style:
//	    inputs: [scss/main.scss]
//	    filter: SCSS2CSS
//	    target: css/style.css
//	  app:
//	    inputs: [js/app.js]
//	    filter: RUN_EXECUTABLE
//	    options:
//	      executable_name: uglifyjs
//	      output_is_stdout: true
//	    target: js/app.js
//
// The packer runs each asset's filter, publishes the result under a name
// carrying a content hash (css/style-1a2b3c4d.css) and records the mapping in
// a cache manifest that templates resolve against.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitepack/internal/fsutil"
)

// RefPrefix marks an input naming another asset's output.
const RefPrefix = "@"

// Asset declares how one logical asset is produced.
type Asset struct {
	Inputs  []string       `yaml:"inputs" json:"inputs"`
	Filter  string         `yaml:"filter,omitempty" json:"filter,omitempty"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
	Target  string         `yaml:"target" json:"target"`
}

// Refs returns the asset names referenced by @inputs.
func (a Asset) Refs() []string {
	var refs []string
	for _, in := range a.Inputs {
		if name, ok := strings.CutPrefix(in, RefPrefix); ok {
			refs = append(refs, name)
		}
	}
	return refs
}

// ErrInvalidManifest marks asset manifests that cannot be decoded, fail
// validation or cannot be ordered.
var ErrInvalidManifest = errors.New("invalid asset manifest")

// Manifest is the decoded asset manifest.
type Manifest struct {
	Assets map[string]Asset `yaml:"assets" json:"assets"`
}

// LoadManifest reads a YAML or JSON asset manifest. Environment variables
// are expanded in inputs and targets only; filter options reach the filter
// byte for byte.
func LoadManifest(file string) (*Manifest, error) {
	// #nosec G304 -- manifest path comes from the site configuration.
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidManifest, file, err)
	}
	m.expandPaths()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidManifest, file, err)
	}
	return &m, nil
}

func (m *Manifest) expandPaths() {
	for name, a := range m.Assets {
		inputs := make([]string, len(a.Inputs))
		for i, in := range a.Inputs {
			inputs[i] = fsutil.ExpandEnv(in)
		}
		a.Inputs = inputs
		a.Target = fsutil.ExpandEnv(a.Target)
		m.Assets[name] = a
	}
}

// Names returns the asset names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Assets))
	for n := range m.Assets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks per-asset structure and reference integrity.
func (m *Manifest) Validate() error {
	var errs []error
	targets := make(map[string]string, len(m.Assets))
	for _, name := range m.Names() {
		a := m.Assets[name]
		if name == "" || strings.HasPrefix(name, RefPrefix) {
			errs = append(errs, fmt.Errorf("asset name %q is invalid", name))
		}
		if len(a.Inputs) == 0 {
			errs = append(errs, fmt.Errorf("asset %s: at least one input required", name))
		}
		if a.Filter == "" && len(a.Inputs) > 1 {
			errs = append(errs, fmt.Errorf("asset %s: copying without a filter takes exactly one input", name))
		}
		if err := validateTarget(a.Target); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", name, err))
		} else if other, dup := targets[a.Target]; dup {
			errs = append(errs, fmt.Errorf("asset %s: target %s already used by %s", name, a.Target, other))
		} else {
			targets[a.Target] = name
		}
		for _, ref := range a.Refs() {
			if _, ok := m.Assets[ref]; !ok {
				errs = append(errs, fmt.Errorf("asset %s: unknown reference %s%s", name, RefPrefix, ref))
			}
		}
	}
	return errors.Join(errs...)
}

func validateTarget(target string) error {
	if target == "" {
		return errors.New("target is required")
	}
	if strings.Contains(target, `\`) || path.IsAbs(target) {
		return fmt.Errorf("target %q must be a relative slash path", target)
	}
	clean := path.Clean(target)
	if clean != target || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("target %q must be a clean path inside the static directory", target)
	}
	return nil
}
