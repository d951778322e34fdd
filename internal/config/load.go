package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// Load reads a site manifest. .hcl files are decoded as HCL; everything else
// as YAML, which also accepts JSON. Key names of the original
// static_website.json format are accepted as aliases. After decoding,
// environment variables are expanded in path, URL and subject fields; the
// template context is left as written. .env files next to the manifest are
// loaded first.
func Load(path string) (*Site, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := loadEnvFiles(dir); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	// #nosec G304 -- the manifest path is chosen by the operator.
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("site manifest not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("read site manifest: %w", err)
	}

	var site *Site
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".hcl":
		site, err = decodeHCL(abs, data)
	default:
		site, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse site manifest %s: %w", path, err)
	}

	site.Path = abs
	site.expandEnv()
	site.TemplateDirectory = globPrefix(site.TemplateDirectory)
	site.applyDefaults()
	site.resolvePaths(dir)
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site manifest validation failed: %w", err)
	}
	return site, nil
}

func decodeYAML(src []byte) (*Site, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, errors.New("manifest is empty")
	}
	if err := normalizeLegacyKeys(&doc); err != nil {
		return nil, err
	}
	normalized, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(normalized))
	dec.KnownFields(true)
	var site Site
	if err := dec.Decode(&site); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, err
	}
	return &site, nil
}

type hclSite struct {
	AssetManifest       string          `hcl:"asset_manifest,optional"`
	AssetCacheManifest  string          `hcl:"asset_cache_manifest,optional"`
	AssetDirectory      string          `hcl:"asset_directory,optional"`
	InternalDirectory   string          `hcl:"internal_directory,optional"`
	StaticDirectory     string          `hcl:"static_directory,optional"`
	StaticBaseURL       string          `hcl:"static_base_url,optional"`
	TemplateDirectory   string          `hcl:"template_directory,optional"`
	HTMLOutputDirectory string          `hcl:"html_output_directory,optional"`
	Context             hcl.Expression  `hcl:"context,optional"`
	CopyInputDirectory  string          `hcl:"copy_input_directory,optional"`
	CopyOutputDirectory string          `hcl:"copy_output_directory,optional"`
	CopyPaths           []string        `hcl:"copy_paths,optional"`
	StylesheetFormat    string          `hcl:"stylesheet_format,optional"`
	VerifyAssetLinks    bool            `hcl:"verify_asset_links,optional"`
	Templates           []hclTemplate   `hcl:"template,block"`
	History             *HistoryConfig  `hcl:"history,block"`
	Events              *hclEvents      `hcl:"events,block"`
	Metrics             *MetricsConfig  `hcl:"metrics,block"`
	Tracing             *TracingConfig  `hcl:"tracing,block"`
}

type hclTemplate struct {
	Name    string         `hcl:"name,label"`
	Output  string         `hcl:"output"`
	Context hcl.Expression `hcl:"context,optional"`
}

type hclEvents struct {
	NATSURL string `hcl:"nats_url"`
	Subject string `hcl:"subject,optional"`
}

func decodeHCL(filename string, src []byte) (*Site, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	var raw hclSite
	if diags := gohcl.DecodeBody(file.Body, envEvalContext(), &raw); diags.HasErrors() {
		return nil, diags
	}

	ctx, err := exprToMap(raw.Context)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	site := &Site{
		AssetManifest:       raw.AssetManifest,
		AssetCacheManifest:  raw.AssetCacheManifest,
		AssetDirectory:      raw.AssetDirectory,
		InternalDirectory:   raw.InternalDirectory,
		StaticDirectory:     raw.StaticDirectory,
		StaticBaseURL:       raw.StaticBaseURL,
		TemplateDirectory:   raw.TemplateDirectory,
		HTMLOutputDirectory: raw.HTMLOutputDirectory,
		Context:             ctx,
		CopyInputDirectory:  raw.CopyInputDirectory,
		CopyOutputDirectory: raw.CopyOutputDirectory,
		CopyPaths:           raw.CopyPaths,
		StylesheetFormat:    raw.StylesheetFormat,
		VerifyAssetLinks:    raw.VerifyAssetLinks,
	}
	for _, t := range raw.Templates {
		tctx, err := exprToMap(t.Context)
		if err != nil {
			return nil, fmt.Errorf("template %q context: %w", t.Name, err)
		}
		site.Templates = append(site.Templates, TemplateEntry{Template: t.Name, Output: t.Output, Context: tctx})
	}
	if raw.History != nil {
		site.History = *raw.History
	}
	if raw.Events != nil {
		site.Events = EventsConfig{NATSURL: raw.Events.NATSURL, Subject: raw.Events.Subject}
	}
	if raw.Metrics != nil {
		site.Metrics = *raw.Metrics
	}
	if raw.Tracing != nil {
		site.Tracing = *raw.Tracing
	}
	return site, nil
}

// envEvalContext exposes the process environment to HCL manifests as
// env.NAME, so "${env.HOME}/site" interpolates.
func envEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			vars[name] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

// exprToMap evaluates a static object expression into plain Go values.
func exprToMap(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", val.Type().FriendlyName())
	}
	data, err := ctyjson.SimpleJSONValue{Value: val}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
