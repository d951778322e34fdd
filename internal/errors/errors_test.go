package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"testing"
)

type configErr struct{}

func (configErr) Error() string       { return "bad option" }
func (configErr) IsConfigError() bool { return true }

func TestSitepackError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *SitepackError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "manifest invalid"),
			expected: "config (fatal): manifest invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load manifest"),
			expected: "config (fatal): failed to load manifest: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); got != test.expected {
				t.Errorf("Error() = %q, want %q", got, test.expected)
			}
		})
	}
}

func TestSitepackError_WithContext(t *testing.T) {
	err := FilterFailed("style", "SCSS2CSS", fmt.Errorf("boom"))
	if err.Context["asset"] != "style" || err.Context["filter"] != "SCSS2CSS" {
		t.Errorf("unexpected context %v", err.Context)
	}
}

func TestGetCategory(t *testing.T) {
	wrapped := fmt.Errorf("stage pack_assets: %w", BuildFailed("pack_assets", fmt.Errorf("x")))
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("plain"), CategoryInternal},
		{"wrapped structured", wrapped, CategoryBuild},
		{"config error wins", FilterFailed("style", "RUN_EXECUTABLE", configErr{}), CategoryConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCategory(tt.err); got != tt.want {
				t.Errorf("GetCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(ConfigNotFound("x.yaml"), CategoryConfig) {
		t.Error("expected config category")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryConfig) {
		t.Error("plain errors have no category")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stdErrors.New("root")
	if !stdErrors.Is(TemplateFailed("index.html", cause), cause) {
		t.Error("cause should be reachable")
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("plain"), 1},
		{ValidationFailed("flag", "bad"), 2},
		{ConfigNotFound("x"), 7},
		{FilterFailed("a", "f", configErr{}), 7},
		{FilterFailed("a", "f", fmt.Errorf("exit 3")), 11},
		{InternalError("oops", nil), 10},
	}
	for _, tt := range tests {
		if got := a.ExitCodeFor(tt.err); got != tt.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	code := -1
	a := NewCLIErrorAdapter(false, nil)
	a.out = &out
	a.exit = func(c int) { code = c }

	a.HandleError(BuildFailed("copy_files", fmt.Errorf("disk full")))

	if code != 11 {
		t.Errorf("exit code = %d, want 11", code)
	}
	if got := out.String(); got != "build: build failed: disk full\n" {
		t.Errorf("output = %q", got)
	}
}
