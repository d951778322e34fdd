// Package linkverify checks that rendered pages only reference published
// assets that exist.
package linkverify

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BrokenLink is a reference under the static base URL with no file behind it.
type BrokenLink struct {
	Page   string // rendered page containing the link
	URL    string // link as written
	Target string // file that was expected under the static directory
}

// Error lists every broken link found in one verification run.
type Error struct {
	Broken []BrokenLink
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d broken asset link(s)", len(e.Broken))
	for _, l := range e.Broken {
		fmt.Fprintf(&b, "\n  %s: %s", l.Page, l.URL)
	}
	return b.String()
}

// Verifier resolves links that start with BaseURL against StaticDir.
type Verifier struct {
	BaseURL   string
	StaticDir string
}

// Verify extracts links from every page and returns an *Error when any link
// under the base URL points at a missing file. Other links are ignored.
func (v Verifier) Verify(pages []string) (int, error) {
	checked := 0
	var broken []BrokenLink
	for _, page := range pages {
		links, err := ExtractLinks(page)
		if err != nil {
			return checked, err
		}
		for _, l := range links {
			rel, ok := v.relative(l.URL)
			if !ok {
				continue
			}
			checked++
			target := filepath.Join(v.StaticDir, filepath.FromSlash(rel))
			if info, err := os.Stat(target); err != nil || info.IsDir() {
				broken = append(broken, BrokenLink{Page: page, URL: l.URL, Target: target})
			}
		}
	}
	if len(broken) > 0 {
		return checked, &Error{Broken: broken}
	}
	return checked, nil
}

// relative strips the base URL, query and fragment from link. It reports
// false for links outside the base URL and for links escaping it.
func (v Verifier) relative(link string) (string, bool) {
	if v.BaseURL == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(link, v.BaseURL)
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", false
	}
	clean := path.Clean(rest)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
