// Package templates renders site pages with Go's template engines.
//
// Every file below the template directory is parsed into one template set and
// named by its slash-separated path relative to that directory, so pages can
// include each other with {{ template "partials/head.html" . }}. Functions
// such as get_asset_url must be supplied before parsing.
//
// Templates named *.html, *.htm and *.xml render through html/template and
// escape their data contextually. Everything else renders through
// text/template unchanged.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	texttemplate "text/template"

	"git.home.luguber.info/inful/sitepack/internal/fsutil"
)

// ErrTemplateNotFound is returned when rendering a name that was not parsed.
var ErrTemplateNotFound = errors.New("template not found")

// autoescapeExts are the extensions whose templates escape their data.
var autoescapeExts = []string{".html", ".htm", ".xml"}

// Autoescaped reports whether the template name renders with escaping.
func Autoescaped(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return slices.Contains(autoescapeExts, ext)
}

// Engine holds every template parsed twice: once escaping, once verbatim.
// It is not modified after Load.
type Engine struct {
	html  *template.Template
	text  *texttemplate.Template
	names []string
}

// Load parses all regular, non-hidden files under dir.
func Load(dir string, funcs template.FuncMap) (*Engine, error) {
	htmlRoot := template.New("").Option("missingkey=error").Funcs(BuiltinFuncs())
	textRoot := texttemplate.New("").Option("missingkey=error").Funcs(texttemplate.FuncMap(BuiltinFuncs()))
	if funcs != nil {
		htmlRoot = htmlRoot.Funcs(funcs)
		textRoot = textRoot.Funcs(texttemplate.FuncMap(funcs))
	}
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		// #nosec G304 -- path is produced by walking the template directory.
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", name, err)
		}
		if _, err := htmlRoot.New(name).Parse(string(src)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		if _, err := textRoot.New(name).Parse(string(src)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return &Engine{html: htmlRoot, text: textRoot, names: names}, nil
}

// Names lists the parsed template names.
func (e *Engine) Names() []string { return append([]string(nil), e.names...) }

// Has reports whether name was parsed.
func (e *Engine) Has(name string) bool {
	return e.text.Lookup(name) != nil
}

// Render executes the named template with data. Date and DateTime are added
// to the data when absent.
func (e *Engine) Render(name string, data map[string]any) ([]byte, error) {
	if !e.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	var buf bytes.Buffer
	var err error
	if Autoescaped(name) {
		err = e.html.ExecuteTemplate(&buf, name, withBuiltinTemplateData(data))
	} else {
		err = e.text.ExecuteTemplate(&buf, name, withBuiltinTemplateData(data))
	}
	if err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// RenderToFile renders name and atomically replaces outPath with the
// result, creating parent directories.
func (e *Engine) RenderToFile(name, outPath string, data map[string]any) error {
	out, err := e.Render(name, data)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// MergeContext returns a new map holding base overlaid with overlay. Keys in
// overlay win; neither argument is modified.
func MergeContext(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	maps.Copy(out, base)
	maps.Copy(out, overlay)
	return out
}
