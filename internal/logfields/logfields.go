package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyAsset      = "asset"
	KeyFilter     = "filter"
	KeyTemplate   = "template"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyExecutable = "executable"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyOutcome    = "outcome"
	KeyError      = "error"
	KeyTrigger    = "trigger"
	KeyRevision   = "revision"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Asset(name string) slog.Attr       { return slog.String(KeyAsset, name) }
func Filter(name string) slog.Attr      { return slog.String(KeyFilter, name) }
func Template(name string) slog.Attr    { return slog.String(KeyTemplate, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr         { return slog.String(KeyOutput, p) }
func Executable(name string) slog.Attr  { return slog.String(KeyExecutable, name) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Outcome(outcome string) slog.Attr  { return slog.String(KeyOutcome, outcome) }
func Trigger(trigger string) slog.Attr  { return slog.String(KeyTrigger, trigger) }
func Revision(rev string) slog.Attr     { return slog.String(KeyRevision, rev) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
