package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Init writes an example site manifest to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("site manifest already exists: %s (use --force to overwrite)", path)
	}

	example := Site{
		AssetManifest:       "assets.yaml",
		AssetDirectory:      "assets",
		InternalDirectory:   ".sitepack",
		StaticDirectory:     "public/static",
		StaticBaseURL:       "/static/",
		TemplateDirectory:   "templates",
		HTMLOutputDirectory: "public",
		Templates: []TemplateEntry{
			{Template: "index.html", Output: "index.html", Context: map[string]any{"title": "Home"}},
		},
		Context:          map[string]any{"site_name": "My Site"},
		CopyPaths:        []string{"robots.txt"},
		StylesheetFormat: "compressed",
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal site manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write site manifest: %w", err)
	}
	return nil
}
