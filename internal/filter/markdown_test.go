package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_RendersAndConcatenates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	writeFile(t, a, "# Title")
	writeFile(t, b, "Some ~~old~~ text.")
	out := filepath.Join(dir, "out.html")

	err := NewMarkdownFilter().ProcessAssetFile(context.Background(), []string{a, b}, out, Options{
		OptExtensions: StringList("strikethrough"),
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Title</h1>")
	assert.Contains(t, string(data), "<del>old</del>")
}

func TestMarkdown_RawHTMLRequiresUnsafe(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.md")
	writeFile(t, in, "<div class=\"x\">raw</div>\n")

	safe := filepath.Join(dir, "safe.html")
	require.NoError(t, NewMarkdownFilter().ProcessAssetFile(context.Background(), []string{in}, safe, nil))
	data, _ := os.ReadFile(safe)
	assert.NotContains(t, string(data), `<div class="x">`)

	unsafe := filepath.Join(dir, "unsafe.html")
	require.NoError(t, NewMarkdownFilter().ProcessAssetFile(context.Background(), []string{in}, unsafe, Options{OptUnsafe: Flag(true)}))
	data, _ = os.ReadFile(unsafe)
	assert.Contains(t, string(data), `<div class="x">`)
}

func TestMarkdown_ConfigErrors(t *testing.T) {
	f := NewMarkdownFilter()
	err := f.ProcessAssetFile(context.Background(), nil, "out.html", nil)
	kind, _ := KindOf(err)
	assert.Equal(t, KindInvalidInputCount, kind)

	err = f.ProcessAssetFile(context.Background(), []string{"a.md"}, "out.html", Options{OptExtensions: StringList("emoji")})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInvalidOptionType, fe.Kind)
	assert.True(t, fe.IsConfigError())

	err = f.ProcessAssetFile(context.Background(), []string{"a.md"}, "out.html", Options{OptHardWraps: String("yes")})
	kind, _ = KindOf(err)
	assert.Equal(t, KindInvalidOptionType, kind)
}
