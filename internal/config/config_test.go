package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const minimalYAML = `asset_manifest: assets.yaml
asset_directory: assets
static_directory: public/static
static_base_url: /static/
template_directory: templates
html_output_directory: public
context:
  site_name: Example
templates:
  - template: index.html
    output: index.html
    context:
      title: Home
copy_paths:
  - robots.txt
`

func TestLoadYAMLResolvesPathsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.yaml", minimalYAML)

	site, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "assets.yaml"), site.AssetManifest)
	assert.Equal(t, filepath.Join(dir, "public", "static"), site.StaticDirectory)
	assert.Equal(t, "/static/", site.StaticBaseURL)
	assert.Equal(t, filepath.Join(dir, ".sitepack"), site.InternalDirectory)
	assert.Equal(t, filepath.Join(dir, ".sitepack", "asset-cache.json"), site.AssetCacheManifest)
	assert.Equal(t, dir, site.CopyInputDirectory)
	assert.Equal(t, site.HTMLOutputDirectory, site.CopyOutputDirectory)
	assert.Equal(t, "expanded", site.StylesheetFormat)
	assert.Equal(t, dir, site.Dir())

	require.Len(t, site.Templates, 1)
	assert.Equal(t, "Home", site.Templates[0].Context["title"])
	assert.Equal(t, "Example", site.Context["site_name"])
	assert.Equal(t, []string{"robots.txt"}, site.CopyPaths)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.json", `{
  "asset_manifest": "assets.json",
  "asset_directory": "assets",
  "static_directory": "static",
  "static_base_url": "https://cdn.example.com/",
  "template_directory": "templates",
  "html_output_directory": "out",
  "templates": [{"template": "a.html", "output": "a/index.html"}],
  "stylesheet_format": "Compressed"
}`)

	site, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/", site.StaticBaseURL)
	assert.Equal(t, "a/index.html", site.Templates[0].Output)
	assert.Equal(t, "Compressed", site.StylesheetFormat)
}

func TestLoadHCL(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.hcl", `
asset_manifest        = "assets.yaml"
asset_directory       = "assets"
static_directory      = "static"
static_base_url       = "/static/"
template_directory    = "templates"
html_output_directory = "public"
copy_paths            = ["favicon.ico"]

context = {
  site_name = "From HCL"
}

template "index.html" {
  output  = "index.html"
  context = {
    title = "Start"
  }
}

template "about.html" {
  output = "about/index.html"
}

history {
  database = "history.db"
}

events {
  nats_url = "nats://127.0.0.1:4222"
}
`)

	site, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "From HCL", site.Context["site_name"])
	require.Len(t, site.Templates, 2)
	assert.Equal(t, "index.html", site.Templates[0].Template)
	assert.Equal(t, "Start", site.Templates[0].Context["title"])
	assert.Nil(t, site.Templates[1].Context)
	assert.Equal(t, filepath.Join(dir, "history.db"), site.History.Database)
	assert.Equal(t, "sitepack.build.finished", site.Events.Subject)
	assert.Equal(t, []string{"favicon.ico"}, site.CopyPaths)
}

func TestLoadHCLRejectsNonObjectContext(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.hcl", `
asset_manifest        = "assets.yaml"
asset_directory       = "assets"
static_directory      = "static"
template_directory    = "templates"
html_output_directory = "public"
context               = "nope"
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an object")
}

func TestLoadExpandsEnvironmentAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITEPACK_TEST_BASE", "https://assets.example.org/")
	writeManifest(t, dir, ".env", "SITEPACK_TEST_OUT=dist\n")
	t.Cleanup(func() { _ = os.Unsetenv("SITEPACK_TEST_OUT") })

	p := writeManifest(t, dir, "static_website.yaml", `asset_manifest: assets.yaml
asset_directory: assets
static_directory: static
static_base_url: ${SITEPACK_TEST_BASE}
template_directory: templates
html_output_directory: ${SITEPACK_TEST_OUT}
`)

	site, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "https://assets.example.org/", site.StaticBaseURL)
	assert.Equal(t, filepath.Join(dir, "dist"), site.HTMLOutputDirectory)
}

func TestLoadLeavesContextUnexpanded(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITEPACK_TEST_PRICE", "oops")
	p := writeManifest(t, dir, "static_website.yaml", `asset_manifest: assets.yaml
asset_directory: assets
static_directory: static
template_directory: templates
html_output_directory: public
context:
  price: "$SITEPACK_TEST_PRICE and $$5"
`)

	site, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "$SITEPACK_TEST_PRICE and $$5", site.Context["price"])
}

func TestLoadHCLEnvVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITEPACK_TEST_OUT", "dist")
	p := writeManifest(t, dir, "static_website.hcl", `
asset_manifest        = "assets.yaml"
asset_directory       = "assets"
static_directory      = "static"
template_directory    = "templates"
html_output_directory = "${env.SITEPACK_TEST_OUT}/html"
`)

	site, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist", "html"), site.HTMLOutputDirectory)
}

const originalJSON = `{
  "asset_manifest_path": "assets.json",
  "asset_cache_manifest_path": "build/cache.json",
  "asset_directory_path": "assets",
  "internal_directory_path": "build",
  "static_directory_path": "public/static",
  "static_base_url": "/static/",
  "tera_input_directory": "templates/**/*",
  "html_output_directory_path": "public",
  "tera_templates": [
    {"template_name": "index.html", "output_name": "index.html", "context": {"title": "Home"}}
  ],
  "context": {"site_name": "Example"},
  "copy_output_directory_path": "public",
  "copy_input_directory_path": "files",
  "copy_paths": ["robots.txt"]
}`

func TestLoadOriginalJSONManifest(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.json", originalJSON)

	found, err := FindManifest(dir, "")
	require.NoError(t, err)
	assert.Equal(t, p, found)

	site, err := Load(found)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets.json"), site.AssetManifest)
	assert.Equal(t, filepath.Join(dir, "build", "cache.json"), site.AssetCacheManifest)
	assert.Equal(t, filepath.Join(dir, "assets"), site.AssetDirectory)
	assert.Equal(t, filepath.Join(dir, "build"), site.InternalDirectory)
	assert.Equal(t, filepath.Join(dir, "public", "static"), site.StaticDirectory)
	assert.Equal(t, filepath.Join(dir, "templates"), site.TemplateDirectory)
	assert.Equal(t, filepath.Join(dir, "public"), site.HTMLOutputDirectory)
	assert.Equal(t, filepath.Join(dir, "files"), site.CopyInputDirectory)
	assert.Equal(t, filepath.Join(dir, "public"), site.CopyOutputDirectory)
	require.Len(t, site.Templates, 1)
	assert.Equal(t, "index.html", site.Templates[0].Template)
	assert.Equal(t, "index.html", site.Templates[0].Output)
	assert.Equal(t, "Home", site.Templates[0].Context["title"])
	assert.Equal(t, "Example", site.Context["site_name"])
	assert.Equal(t, []string{"robots.txt"}, site.CopyPaths)
}

func TestLoadRejectsBothKeySpellings(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "static_website.yaml", minimalYAML+"asset_manifest_path: other.yaml\n")
	_, err := Load(p)
	require.ErrorContains(t, err, "asset_manifest_path and asset_manifest set the same field")
}

func TestGlobPrefix(t *testing.T) {
	tests := map[string]string{
		"templates/**/*":      "templates",
		"templates/*.html":    "templates",
		"site/tpl/page?.html": filepath.FromSlash("site/tpl"),
		"*.html":              ".",
		"templates":           "templates",
	}
	for in, want := range tests {
		assert.Equal(t, want, globPrefix(in), in)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := writeManifest(t, dir, "empty.yaml", "")
	_, err = Load(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	unknown := writeManifest(t, dir, "unknown.yaml", minimalYAML+"bogus_field: 1\n")
	_, err = Load(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_field")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	s := &Site{
		StylesheetFormat: "fancy",
		Templates: []TemplateEntry{
			{Template: "a.html", Output: "index.html"},
			{Template: "b.html", Output: "index.html"},
			{Template: "", Output: "../escape.html"},
		},
		CopyPaths: []string{"/etc/passwd"},
		Events:    EventsConfig{NATSURL: "localhost"},
	}
	err := s.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"asset_manifest is required",
		"html_output_directory is required",
		"stylesheet_format",
		"duplicates templates[0]",
		"templates[2].template is required",
		"escapes its directory",
		"copy_paths[0]",
		"events.nats_url",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestFindManifest(t *testing.T) {
	dir := t.TempDir()

	_, err := FindManifest(dir, "")
	require.Error(t, err)

	got, err := FindManifest(dir, "custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", got)

	writeManifest(t, dir, "static_website.json", "{}")
	writeManifest(t, dir, "static_website.hcl", "")
	got, err = FindManifest(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "static_website.json"), got)
}

func TestInitWritesLoadableManifest(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "static_website.yaml")

	require.NoError(t, Init(p, false))
	require.Error(t, Init(p, false))
	require.NoError(t, Init(p, true))

	site, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "compressed", site.StylesheetFormat)
	assert.Equal(t, "/static/", site.StaticBaseURL)
	require.Len(t, site.Templates, 1)
}
