package filter

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Option names understood by MarkdownFilter.
const (
	OptExtensions = "extensions"
	OptUnsafe     = "unsafe"
	OptHardWraps  = "hard_wraps"
)

var markdownExtensions = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"tasklist":      extension.TaskList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
}

// MarkdownFilter renders Markdown to an HTML fragment. Multiple inputs are
// concatenated in order, separated by a blank line.
type MarkdownFilter struct{}

func NewMarkdownFilter() *MarkdownFilter { return &MarkdownFilter{} }

func (MarkdownFilter) ProcessAssetFile(_ context.Context, inputPaths []string, outputPath string, opts Options) error {
	if len(inputPaths) == 0 {
		return invalidInputCount(0)
	}
	md, err := newMarkdown(opts)
	if err != nil {
		return err
	}

	var src bytes.Buffer
	for i, p := range inputPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return ioError("read markdown", err)
		}
		if i > 0 {
			src.WriteString("\n\n")
		}
		src.Write(data)
	}

	var out bytes.Buffer
	if err := md.Convert(src.Bytes(), &out); err != nil {
		return &Error{Kind: KindCompilation, Err: err}
	}
	return writeOutput(outputPath, out.Bytes())
}

func newMarkdown(opts Options) (goldmark.Markdown, error) {
	names, err := opts.OptionalStringList(OptExtensions)
	if err != nil {
		return nil, err
	}
	exts := make([]goldmark.Extender, 0, len(names))
	for _, n := range names {
		ext, ok := markdownExtensions[n]
		if !ok {
			return nil, &Error{Kind: KindInvalidOptionType, Option: OptExtensions, Err: fmt.Errorf("unknown extension %q", n)}
		}
		exts = append(exts, ext)
	}

	var rendererOpts []goldmark.Option
	var htmlOpts []renderer.Option
	unsafe, err := opts.Flag(OptUnsafe)
	if err != nil {
		return nil, err
	}
	if unsafe {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	hardWraps, err := opts.Flag(OptHardWraps)
	if err != nil {
		return nil, err
	}
	if hardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	if len(htmlOpts) > 0 {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(htmlOpts...))
	}
	rendererOpts = append(rendererOpts, goldmark.WithExtensions(exts...))
	return goldmark.New(rendererOpts...), nil
}
