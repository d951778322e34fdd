// Package resolver maps logical asset names to public URLs using a loaded
// cache manifest. It backs the get_asset_url template function.
package resolver

import (
	"errors"
	"fmt"
	"html/template"
)

// FuncName is the template function name bound by FuncMap.
const FuncName = "get_asset_url"

var (
	ErrParameterRequired  = errors.New("parameter 'name' is required")
	ErrParameterNotString = errors.New("parameter 'name' must be a string")
	ErrAssetNotFound      = errors.New("asset not found")
)

// Lookup finds the published relative path of a logical asset.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// MapLookup is a Lookup backed by a plain map.
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (string, bool) {
	p, ok := m[name]
	return p, ok
}

// Resolver is read-only after construction and safe for concurrent use.
type Resolver struct {
	lookup  Lookup
	baseURL string
}

// New returns a resolver joining baseURL and manifest paths by plain
// concatenation. A nil lookup resolves nothing.
func New(lookup Lookup, baseURL string) *Resolver {
	if lookup == nil {
		lookup = MapLookup(nil)
	}
	return &Resolver{lookup: lookup, baseURL: baseURL}
}

// BaseURL returns the configured prefix.
func (r *Resolver) BaseURL() string { return r.baseURL }

// URL resolves one logical name.
func (r *Resolver) URL(name string) (string, error) {
	p, ok := r.lookup.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: `%s`", ErrAssetNotFound, name)
	}
	return r.baseURL + p, nil
}

// Resolve reads the "name" parameter and resolves it.
func (r *Resolver) Resolve(params map[string]any) (string, error) {
	raw, ok := params["name"]
	if !ok {
		return "", ErrParameterRequired
	}
	name, ok := raw.(string)
	if !ok {
		return "", ErrParameterNotString
	}
	return r.URL(name)
}

// TemplateFunc adapts Resolve to a template function taking key/value
// pairs, as in {{ get_asset_url "name" "style" }}.
func (r *Resolver) TemplateFunc() func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		params, err := pairs(args)
		if err != nil {
			return "", err
		}
		return r.Resolve(params)
	}
}

// FuncMap returns the template functions backed by r.
func (r *Resolver) FuncMap() template.FuncMap {
	return template.FuncMap{FuncName: r.TemplateFunc()}
}

func pairs(args []any) (map[string]any, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("%s: expected key/value pairs, got %d arguments", FuncName, len(args))
	}
	params := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d: key must be a string, got %T", FuncName, i, args[i])
		}
		params[key] = args[i+1]
	}
	return params, nil
}
