// Package config loads the site manifest that drives a sitepack build.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitepack/internal/filter"
	"git.home.luguber.info/inful/sitepack/internal/fsutil"
)

// DefaultManifestNames are searched, in order, when no manifest is given.
var DefaultManifestNames = []string{
	"static_website.yaml",
	"static_website.yml",
	"static_website.json",
	"static_website.hcl",
}

// TemplateEntry renders one template to one output file.
type TemplateEntry struct {
	Template string         `yaml:"template" json:"template"`
	Output   string         `yaml:"output" json:"output"`
	Context  map[string]any `yaml:"context,omitempty" json:"context,omitempty"`
}

// HistoryConfig enables the SQLite build history.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty" json:"database,omitempty" hcl:"database,optional"`
}

// EventsConfig enables publishing build events to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" json:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty"`
}

// MetricsConfig enables writing Prometheus metrics after each build.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty" hcl:"textfile,optional"`
}

// TracingConfig enables span export.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty" hcl:"enabled,optional"`
	File    string `yaml:"file,omitempty" json:"file,omitempty" hcl:"file,optional"`
}

// Site is the decoded site manifest. After Load every path field is
// absolute or resolved against the manifest's directory.
type Site struct {
	AssetManifest       string          `yaml:"asset_manifest" json:"asset_manifest"`
	AssetCacheManifest  string          `yaml:"asset_cache_manifest" json:"asset_cache_manifest"`
	AssetDirectory      string          `yaml:"asset_directory" json:"asset_directory"`
	InternalDirectory   string          `yaml:"internal_directory" json:"internal_directory"`
	StaticDirectory     string          `yaml:"static_directory" json:"static_directory"`
	StaticBaseURL       string          `yaml:"static_base_url" json:"static_base_url"`
	TemplateDirectory   string          `yaml:"template_directory" json:"template_directory"`
	HTMLOutputDirectory string          `yaml:"html_output_directory" json:"html_output_directory"`
	Templates           []TemplateEntry `yaml:"templates" json:"templates"`
	Context             map[string]any  `yaml:"context,omitempty" json:"context,omitempty"`
	CopyInputDirectory  string          `yaml:"copy_input_directory,omitempty" json:"copy_input_directory,omitempty"`
	CopyOutputDirectory string          `yaml:"copy_output_directory,omitempty" json:"copy_output_directory,omitempty"`
	CopyPaths           []string        `yaml:"copy_paths,omitempty" json:"copy_paths,omitempty"`
	StylesheetFormat    string          `yaml:"stylesheet_format,omitempty" json:"stylesheet_format,omitempty"`
	VerifyAssetLinks    bool            `yaml:"verify_asset_links,omitempty" json:"verify_asset_links,omitempty"`
	History             HistoryConfig   `yaml:"history,omitempty" json:"history,omitempty"`
	Events              EventsConfig    `yaml:"events,omitempty" json:"events,omitempty"`
	Metrics             MetricsConfig   `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing             TracingConfig   `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Path is the manifest file the site was loaded from.
	Path string `yaml:"-" json:"-"`
}

// Dir is the directory relative paths were resolved against.
func (s *Site) Dir() string { return filepath.Dir(s.Path) }

// applyDefaults fills optional fields.
func (s *Site) applyDefaults() {
	if s.InternalDirectory == "" {
		s.InternalDirectory = ".sitepack"
	}
	if s.AssetCacheManifest == "" {
		s.AssetCacheManifest = filepath.Join(s.InternalDirectory, "asset-cache.json")
	}
	if s.StylesheetFormat == "" {
		s.StylesheetFormat = string(filter.FormatExpanded)
	}
	if s.CopyInputDirectory == "" {
		s.CopyInputDirectory = "."
	}
	if s.CopyOutputDirectory == "" {
		s.CopyOutputDirectory = s.HTMLOutputDirectory
	}
	if s.Events.NATSURL != "" && s.Events.Subject == "" {
		s.Events.Subject = "sitepack.build.finished"
	}
	if s.Tracing.Enabled && s.Tracing.File == "" {
		s.Tracing.File = filepath.Join(s.InternalDirectory, "traces.json")
	}
}

// expandEnv expands environment variables in every path, URL and subject
// field. Template context values are never expanded.
func (s *Site) expandEnv() {
	fields := []*string{
		&s.AssetManifest,
		&s.AssetCacheManifest,
		&s.AssetDirectory,
		&s.InternalDirectory,
		&s.StaticDirectory,
		&s.StaticBaseURL,
		&s.TemplateDirectory,
		&s.HTMLOutputDirectory,
		&s.CopyInputDirectory,
		&s.CopyOutputDirectory,
		&s.History.Database,
		&s.Events.NATSURL,
		&s.Events.Subject,
		&s.Metrics.Textfile,
		&s.Tracing.File,
	}
	for i := range s.Templates {
		fields = append(fields, &s.Templates[i].Template, &s.Templates[i].Output)
	}
	for i := range s.CopyPaths {
		fields = append(fields, &s.CopyPaths[i])
	}
	for _, p := range fields {
		*p = fsutil.ExpandEnv(*p)
	}
}

// resolvePaths makes every path field absolute against base.
func (s *Site) resolvePaths(base string) {
	for _, p := range []*string{
		&s.AssetManifest,
		&s.AssetCacheManifest,
		&s.AssetDirectory,
		&s.InternalDirectory,
		&s.StaticDirectory,
		&s.TemplateDirectory,
		&s.HTMLOutputDirectory,
		&s.CopyInputDirectory,
		&s.CopyOutputDirectory,
		&s.History.Database,
		&s.Metrics.Textfile,
		&s.Tracing.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, filepath.FromSlash(*p))
		}
	}
}

// Validate collects every missing or malformed field into one error.
func (s *Site) Validate() error {
	var errs []error
	required := []struct {
		name, value string
	}{
		{"asset_manifest", s.AssetManifest},
		{"asset_directory", s.AssetDirectory},
		{"static_directory", s.StaticDirectory},
		{"template_directory", s.TemplateDirectory},
		{"html_output_directory", s.HTMLOutputDirectory},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if _, err := filter.ParseStylesheetFormat(s.StylesheetFormat); err != nil {
		errs = append(errs, fmt.Errorf("stylesheet_format: %w", err))
	}
	outputs := make(map[string]int, len(s.Templates))
	for i, t := range s.Templates {
		if t.Template == "" {
			errs = append(errs, fmt.Errorf("templates[%d].template is required", i))
		}
		if err := relativeInside(t.Output); err != nil {
			errs = append(errs, fmt.Errorf("templates[%d].output: %w", i, err))
		} else if j, dup := outputs[t.Output]; dup {
			errs = append(errs, fmt.Errorf("templates[%d].output %s duplicates templates[%d]", i, t.Output, j))
		} else {
			outputs[t.Output] = i
		}
	}
	for i, p := range s.CopyPaths {
		if err := relativeInside(p); err != nil {
			errs = append(errs, fmt.Errorf("copy_paths[%d]: %w", i, err))
		}
	}
	if s.Events.NATSURL != "" && !strings.Contains(s.Events.NATSURL, "://") {
		errs = append(errs, fmt.Errorf("events.nats_url %q must be a URL", s.Events.NATSURL))
	}
	return errors.Join(errs...)
}

func relativeInside(p string) error {
	if p == "" {
		return errors.New("path is required")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("%q must be relative", p)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q escapes its directory", p)
	}
	return nil
}

// FindManifest returns explicit when set, else the first default manifest
// name present in dir.
func FindManifest(dir, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, name := range DefaultManifestNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no site manifest found in %s (looked for %s)", dir, strings.Join(DefaultManifestNames, ", "))
}
