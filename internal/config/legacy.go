package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// legacyKeys maps the key names of the original static_website.json format
// onto the current ones.
var legacyKeys = map[string]string{
	"asset_manifest_path":        "asset_manifest",
	"asset_cache_manifest_path":  "asset_cache_manifest",
	"asset_directory_path":       "asset_directory",
	"internal_directory_path":    "internal_directory",
	"static_directory_path":      "static_directory",
	"tera_input_directory":       "template_directory",
	"html_output_directory_path": "html_output_directory",
	"tera_templates":             "templates",
	"copy_input_directory_path":  "copy_input_directory",
	"copy_output_directory_path": "copy_output_directory",
}

var legacyTemplateKeys = map[string]string{
	"template_name": "template",
	"output_name":   "output",
}

// normalizeLegacyKeys rewrites legacy keys of a decoded manifest document in
// place. Setting both spellings of one field is an error.
func normalizeLegacyKeys(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	if err := renameKeys(root, legacyKeys); err != nil {
		return err
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "templates" || root.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		for j, entry := range root.Content[i+1].Content {
			if entry.Kind != yaml.MappingNode {
				continue
			}
			if err := renameKeys(entry, legacyTemplateKeys); err != nil {
				return fmt.Errorf("templates[%d]: %w", j, err)
			}
		}
	}
	return nil
}

func renameKeys(m *yaml.Node, names map[string]string) error {
	present := make(map[string]bool, len(m.Content)/2)
	for i := 0; i < len(m.Content); i += 2 {
		present[m.Content[i].Value] = true
	}
	for i := 0; i < len(m.Content); i += 2 {
		key := m.Content[i]
		current, ok := names[key.Value]
		if !ok {
			continue
		}
		if present[current] {
			return fmt.Errorf("%s and %s set the same field", key.Value, current)
		}
		key.Value = current
	}
	return nil
}

// globPrefix returns the directory part of a template glob such as
// "templates/**/*.html". Paths without glob characters are returned as is.
func globPrefix(p string) string {
	i := strings.IndexAny(p, "*?[{")
	if i < 0 {
		return p
	}
	dir := filepath.Dir(p[:i] + "x")
	if dir == "" {
		return "."
	}
	return dir
}
