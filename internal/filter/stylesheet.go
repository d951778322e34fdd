package filter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bep/golibsass/libsass"
)

// StylesheetFormat selects the layout of compiled CSS.
type StylesheetFormat string

const (
	FormatExpanded   StylesheetFormat = "expanded"
	FormatNested     StylesheetFormat = "nested"
	FormatCompact    StylesheetFormat = "compact"
	FormatCompressed StylesheetFormat = "compressed"
)

// ParseStylesheetFormat accepts the format names case-insensitively.
// The empty string selects FormatExpanded.
func ParseStylesheetFormat(s string) (StylesheetFormat, error) {
	switch f := StylesheetFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatExpanded, nil
	case FormatExpanded, FormatNested, FormatCompact, FormatCompressed:
		return f, nil
	default:
		return "", fmt.Errorf("unknown stylesheet format %q", s)
	}
}

func (f StylesheetFormat) outputStyle() libsass.OutputStyle {
	switch f {
	case FormatNested:
		return libsass.NestedStyle
	case FormatCompact:
		return libsass.CompactStyle
	case FormatCompressed:
		return libsass.CompressedStyle
	default:
		return libsass.ExpandedStyle
	}
}

// StylesheetFilter compiles one SCSS file to CSS in-process. The output
// format is fixed at construction; per-invocation options are ignored.
type StylesheetFilter struct {
	format       StylesheetFormat
	includePaths []string
}

// NewStylesheetFilter returns a compiler producing the given format. Extra
// include paths are searched after the input file's own directory.
func NewStylesheetFilter(format StylesheetFormat, includePaths ...string) *StylesheetFilter {
	if format == "" {
		format = FormatExpanded
	}
	return &StylesheetFilter{format: format, includePaths: includePaths}
}

// Format reports the configured output format.
func (f *StylesheetFilter) Format() StylesheetFormat { return f.format }

// ConfigKey covers the output format and the extra include paths.
func (f *StylesheetFilter) ConfigKey() string {
	return "format=" + string(f.format) + ";include=" + strings.Join(f.includePaths, string(filepath.ListSeparator))
}

// Dependencies lists every Sass source an @import could reach: all .scss and
// .sass files below the input's directory and below each include path,
// excluding the input itself. Missing include paths are skipped.
func (f *StylesheetFilter) Dependencies(inputPaths []string, _ Options) ([]string, error) {
	if len(inputPaths) != 1 {
		return nil, invalidInputCount(len(inputPaths))
	}
	input := filepath.Clean(inputPaths[0])
	seen := map[string]bool{input: true}
	var deps []string
	for _, root := range f.includeDirs(input) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !isSassSource(path) || seen[path] {
				return nil
			}
			seen[path] = true
			deps = append(deps, path)
			return nil
		})
		if err != nil {
			return nil, ioError("list stylesheet dependencies", err)
		}
	}
	sort.Strings(deps)
	return deps, nil
}

func (f *StylesheetFilter) includeDirs(input string) []string {
	return append([]string{filepath.Dir(input)}, f.includePaths...)
}

func isSassSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass":
		return true
	}
	return false
}

func (f *StylesheetFilter) ProcessAssetFile(_ context.Context, inputPaths []string, outputPath string, _ Options) error {
	if len(inputPaths) != 1 {
		return invalidInputCount(len(inputPaths))
	}
	src, err := os.ReadFile(inputPaths[0])
	if err != nil {
		return ioError("read stylesheet", err)
	}

	includes := f.includeDirs(inputPaths[0])
	transpiler, err := libsass.New(libsass.Options{
		IncludePaths: includes,
		OutputStyle:  f.format.outputStyle(),
		SassSyntax:   strings.EqualFold(filepath.Ext(inputPaths[0]), ".sass"),
	})
	if err != nil {
		return &Error{Kind: KindCompilation, Err: err}
	}
	res, err := transpiler.Execute(string(src))
	if err != nil {
		return &Error{Kind: KindCompilation, Err: fmt.Errorf("%s: %w", inputPaths[0], err)}
	}
	return writeOutput(outputPath, []byte(res.CSS))
}
