package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := &CLI{}
	g := &Global{Out: &out}
	parser, err := kong.New(cli,
		kong.Name("sitepack"),
		kong.Vars{"version": "test"},
		kong.Bind(g),
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(g, cli)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newSite lays out a minimal site with one copied asset and one template.
func newSite(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "app.js"), "console.log(1)")
	writeFile(t, filepath.Join(dir, "assets.yaml"), "assets:\n  app:\n    inputs: [app.js]\n    target: js/app.js\n")
	writeFile(t, filepath.Join(dir, "templates", "index.html"), `<h1>{{ .title }}</h1><script src="{{ get_asset_url "name" "app" }}"></script>`)
	writeFile(t, filepath.Join(dir, "robots.txt"), "User-agent: *")
	manifest := `asset_manifest: assets.yaml
asset_directory: assets
static_directory: public/static
static_base_url: /static/
template_directory: templates
html_output_directory: public
templates:
  - template: index.html
    output: index.html
copy_paths: [robots.txt]
verify_asset_links: true
` + extra
	p := filepath.Join(dir, "static_website.yaml")
	writeFile(t, p, manifest)
	return p
}

func TestBuildCommand(t *testing.T) {
	manifest := newSite(t, "")
	dir := filepath.Dir(manifest)
	metricsFile := filepath.Join(dir, "metrics", "sitepack.prom")

	out, err := run(t, "-m", manifest, "build", "--metrics-file", metricsFile, "--var", "title=Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=success")

	html, err := os.ReadFile(filepath.Join(dir, "public", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Hello</h1>")
	assert.Contains(t, string(html), `src="/static/js/app-`)
	assert.FileExists(t, filepath.Join(dir, "public", "robots.txt"))
	assert.FileExists(t, filepath.Join(dir, ".sitepack", "build-report.json"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sitepack_build_outcomes_total")
}

func TestBuildCommandMissingManifest(t *testing.T) {
	_, err := run(t, "-m", filepath.Join(t.TempDir(), "nope.yaml"), "build")
	require.Error(t, err)
	assert.Equal(t, sperrors.CategoryConfig, sperrors.GetCategory(err))
}

func TestBuildCommandTemplateFailure(t *testing.T) {
	manifest := newSite(t, "")
	_, err := run(t, "-m", manifest, "build")
	require.Error(t, err, "title is not set")
	assert.Equal(t, 11, sperrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestHistoryCommand(t *testing.T) {
	manifest := newSite(t, "context:\n  title: Home\nhistory:\n  database: .sitepack/history.db\n")

	_, err := run(t, "-m", manifest, "build")
	require.NoError(t, err)
	_, err = run(t, "-m", manifest, "build")
	require.NoError(t, err)

	out, err := run(t, "-m", manifest, "history", "-n", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[1], "build")
}

func TestHistoryCommandRequiresDatabase(t *testing.T) {
	manifest := newSite(t, "")
	_, err := run(t, "-m", manifest, "history")
	require.Error(t, err)
	assert.Equal(t, sperrors.CategoryValidation, sperrors.GetCategory(err))
}

func TestFiltersCommand(t *testing.T) {
	out, err := run(t, "filters")
	require.NoError(t, err)
	assert.Equal(t, "MARKDOWN2HTML\nRUN_EXECUTABLE\nSCSS2CSS\n", out)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "static_website.yaml")
	assert.FileExists(t, filepath.Join(dir, "static_website.yaml"))

	_, err = run(t, "init", "-o", dir)
	require.Error(t, err)
	_, err = run(t, "init", "-o", dir, "--force")
	require.NoError(t, err)
}

func TestScheduleCommandRequiresSchedule(t *testing.T) {
	manifest := newSite(t, "")
	_, err := run(t, "-m", manifest, "schedule")
	require.Error(t, err)
	assert.Equal(t, sperrors.CategoryValidation, sperrors.GetCategory(err))
}
