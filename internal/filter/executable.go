package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// Option names understood by ExecutableFilter. The spelling matches existing
// site manifests.
const (
	OptExecutableName         = "executable_name"
	OptInputFileArgumentName  = "input_file_argument_name"
	OptOutputFileArgumentName = "output_file_argument_name"
	OptExtraArguments         = "extra_arguments"
	OptOutputIsStdout         = "output_is_stdout"
	OptTimeout                = "timeout"
)

// stderrTailBytes bounds how much stderr is attached to an exit-status error.
const stderrTailBytes = 4096

// Invocation is the parsed option set of one ExecutableFilter run.
type Invocation struct {
	Executable     string
	InputFlag      string
	OutputFlag     string
	ExtraArguments []string
	OutputIsStdout bool
	// Timeout bounds the run when positive. There is no implicit limit.
	Timeout time.Duration
}

// ParseInvocation validates executable filter options.
func ParseInvocation(opts Options) (Invocation, error) {
	var inv Invocation
	var err error
	if inv.Executable, err = opts.RequireString(OptExecutableName); err != nil {
		return Invocation{}, err
	}
	if inv.InputFlag, _, err = opts.OptionalString(OptInputFileArgumentName); err != nil {
		return Invocation{}, err
	}
	if inv.OutputFlag, _, err = opts.OptionalString(OptOutputFileArgumentName); err != nil {
		return Invocation{}, err
	}
	if inv.ExtraArguments, err = opts.OptionalStringList(OptExtraArguments); err != nil {
		return Invocation{}, err
	}
	if inv.OutputIsStdout, err = opts.Flag(OptOutputIsStdout); err != nil {
		return Invocation{}, err
	}
	raw, ok, err := opts.OptionalString(OptTimeout)
	if err != nil {
		return Invocation{}, err
	}
	if ok {
		d, perr := time.ParseDuration(raw)
		if perr != nil || d < 0 {
			return Invocation{}, &Error{Kind: KindInvalidOptionType, Option: OptTimeout, Err: fmt.Errorf("invalid duration %q", raw)}
		}
		inv.Timeout = d
	}
	return inv, nil
}

// BuildArguments assembles the argument list: optional input flag, input
// path, then (unless stdout is captured) optional output flag and output
// path, then the extra arguments in declared order.
func BuildArguments(inv Invocation, inputPath, outputPath string) []string {
	args := make([]string, 0, 4+len(inv.ExtraArguments))
	if inv.InputFlag != "" {
		args = append(args, inv.InputFlag)
	}
	args = append(args, inputPath)
	if !inv.OutputIsStdout {
		if inv.OutputFlag != "" {
			args = append(args, inv.OutputFlag)
		}
		args = append(args, outputPath)
	}
	return append(args, inv.ExtraArguments...)
}

// ExecutableFilter delegates the transformation to an external program.
type ExecutableFilter struct {
	// Command creates the process. Defaults to exec.CommandContext.
	Command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecutableFilter returns an ExecutableFilter spawning real processes.
func NewExecutableFilter() *ExecutableFilter {
	return &ExecutableFilter{Command: exec.CommandContext}
}

func (f *ExecutableFilter) ProcessAssetFile(ctx context.Context, inputPaths []string, outputPath string, opts Options) error {
	if len(inputPaths) != 1 {
		return invalidInputCount(len(inputPaths))
	}
	inv, err := ParseInvocation(opts)
	if err != nil {
		return err
	}
	args := BuildArguments(inv, inputPaths[0], outputPath)

	// A running program is never interrupted by the caller; only the
	// explicit timeout option can stop it.
	runCtx := context.WithoutCancel(ctx)
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, inv.Timeout)
		defer cancel()
	}

	if !inv.OutputIsStdout {
		if err := ensureParentDir(outputPath); err != nil {
			return err
		}
	}

	command := f.Command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(runCtx, inv.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running executable filter",
		logfields.Executable(inv.Executable),
		slog.Any("args", args),
		slog.Bool("output_is_stdout", inv.OutputIsStdout))
	t0 := time.Now()
	runErr := cmd.Run()
	dur := time.Since(t0)

	if !inv.OutputIsStdout && stdout.Len() > 0 {
		slog.Debug("executable stdout", logfields.Executable(inv.Executable), slog.String("output", stdout.String()))
	}
	if stderr.Len() > 0 {
		slog.Debug("executable stderr", logfields.Executable(inv.Executable), slog.String("error_output", stderr.String()))
	}

	if runErr != nil {
		return f.runFailure(runCtx, inv, outputPath, runErr, stderr.Bytes())
	}

	slog.Debug("Executable filter completed",
		logfields.Executable(inv.Executable),
		logfields.DurationMS(float64(dur.Milliseconds())))

	if inv.OutputIsStdout {
		return writeOutput(outputPath, stdout.Bytes())
	}
	if _, err := os.Stat(outputPath); err != nil {
		return ioError(fmt.Sprintf("executable %s did not produce %s", inv.Executable, outputPath), err)
	}
	return nil
}

func (f *ExecutableFilter) runFailure(runCtx context.Context, inv Invocation, outputPath string, runErr error, stderr []byte) error {
	var exitErr *exec.ExitError
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if !timedOut && !errors.As(runErr, &exitErr) {
		// The process never started.
		return &Error{Kind: KindIO, Err: fmt.Errorf("spawn %s: %w", inv.Executable, runErr)}
	}

	// Whatever the program wrote before failing is not an asset.
	if !inv.OutputIsStdout {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove output of failed executable", logfields.Path(outputPath), logfields.Error(err))
		}
	}

	fe := &Error{Kind: KindExecutableStatus, ExitCode: -1, Stderr: tail(stderr, stderrTailBytes), Err: runErr}
	if exitErr != nil {
		fe.ExitCode = exitErr.ExitCode()
	}
	if timedOut {
		fe.Err = fmt.Errorf("timed out after %s: %w", inv.Timeout, runErr)
	}
	slog.Warn("Executable filter failed",
		logfields.Executable(inv.Executable),
		logfields.ExitCode(fe.ExitCode),
		logfields.Error(runErr))
	return fe
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "…" + s[cut:]
}
