package linkverify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinksFromReader(t *testing.T) {
	doc := `<html><head>
<link rel="stylesheet" href="/static/css/a.css">
<script src="/static/js/app.js"></script>
</head><body>
<a href="https://example.com/">x</a>
<img src="/static/img/logo.png" alt="logo">
<a>no href</a>
</body></html>`

	links, err := ExtractLinksFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, links, 4)
	assert.Equal(t, Link{URL: "/static/css/a.css", Tag: "link", Attribute: "href"}, links[0])
	assert.Equal(t, "script", links[1].Tag)
	assert.Equal(t, "https://example.com/", links[2].URL)
	assert.Equal(t, "src", links[3].Attribute)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	static := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(filepath.Join(static, "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(static, "css", "style-abcd1234.css"), []byte("x"), 0o600))

	page := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte(`<link href="/static/css/style-abcd1234.css?v=1">
<script src="/static/js/missing.js"></script>
<a href="/about/">about</a>
<a href="/static/../secret">escape</a>`), 0o600))

	v := Verifier{BaseURL: "/static/", StaticDir: static}
	checked, err := v.Verify([]string{page})
	assert.Equal(t, 2, checked)
	require.Error(t, err)

	var le *Error
	require.ErrorAs(t, err, &le)
	require.Len(t, le.Broken, 1)
	assert.Equal(t, "/static/js/missing.js", le.Broken[0].URL)
	assert.Contains(t, err.Error(), "1 broken asset link(s)")
}

func TestVerifyIgnoresEverythingWithoutBaseURL(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte(`<img src="/nope.png">`), 0o600))

	checked, err := Verifier{StaticDir: dir}.Verify([]string{page})
	require.NoError(t, err)
	assert.Zero(t, checked)
}
