package filter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX utilities")
	}
}

// spyCommand records whether a process was ever created.
type spyCommand struct {
	calls int
}

func (s *spyCommand) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	s.calls++
	return exec.CommandContext(ctx, name, args...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBuildArguments(t *testing.T) {
	tests := []struct {
		name string
		inv  Invocation
		want []string
	}{
		{
			name: "positional only",
			inv:  Invocation{Executable: "cp"},
			want: []string{"in", "out"},
		},
		{
			name: "named input and output",
			inv:  Invocation{Executable: "tool", InputFlag: "--in", OutputFlag: "-o", ExtraArguments: []string{"-x", "-y"}},
			want: []string{"--in", "in", "-o", "out", "-x", "-y"},
		},
		{
			name: "stdout ignores output flag",
			inv:  Invocation{Executable: "uglifyjs", OutputFlag: "-o", OutputIsStdout: true, ExtraArguments: []string{"-c"}},
			want: []string{"in", "-c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArguments(tt.inv, "in", "out"))
		})
	}
}

func TestBuildArgumentsProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		inv := Invocation{
			Executable:     "prog",
			InputFlag:      rapid.SampledFrom([]string{"", "-i", "--input"}).Draw(rt, "inflag"),
			OutputFlag:     rapid.SampledFrom([]string{"", "-o", "--output"}).Draw(rt, "outflag"),
			ExtraArguments: rapid.SliceOf(rapid.StringMatching(`-[a-z]{1,4}`)).Draw(rt, "extra"),
			OutputIsStdout: rapid.Bool().Draw(rt, "stdout"),
		}
		in := "/src/" + rapid.StringMatching(`[a-z]{1,8}\.scss`).Draw(rt, "in")
		out := "/dst/" + rapid.StringMatching(`[a-z]{1,8}\.css`).Draw(rt, "out")
		args := BuildArguments(inv, in, out)

		i := 0
		if inv.InputFlag != "" {
			if args[i] != inv.InputFlag {
				rt.Fatalf("args[%d] = %q, want input flag", i, args[i])
			}
			i++
		}
		if args[i] != in {
			rt.Fatalf("args[%d] = %q, want input path", i, args[i])
		}
		i++
		if inv.OutputIsStdout {
			for _, a := range args {
				if a == out || (inv.OutputFlag != "" && a == inv.OutputFlag) {
					rt.Fatalf("stdout mode must not pass output: %v", args)
				}
			}
		} else {
			if inv.OutputFlag != "" {
				if args[i] != inv.OutputFlag {
					rt.Fatalf("args[%d] = %q, want output flag", i, args[i])
				}
				i++
			}
			if args[i] != out {
				rt.Fatalf("args[%d] = %q, want output path", i, args[i])
			}
			i++
		}
		rest := args[i:]
		if len(rest) != len(inv.ExtraArguments) {
			rt.Fatalf("extra arguments %v, want %v", rest, inv.ExtraArguments)
		}
		for j := range rest {
			if rest[j] != inv.ExtraArguments[j] {
				rt.Fatalf("extra argument %d = %q, want %q", j, rest[j], inv.ExtraArguments[j])
			}
		}
	})
}

func TestExecutable_MissingExecutableNameNeverSpawns(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		spy := &spyCommand{}
		f := &ExecutableFilter{Command: spy.command}
		opts := Options{}
		if rapid.Bool().Draw(rt, "with extras") {
			opts[OptExtraArguments] = StringList("-q")
		}
		if rapid.Bool().Draw(rt, "with stdout") {
			opts[OptOutputIsStdout] = Flag(true)
		}

		err := f.ProcessAssetFile(context.Background(), []string{"in.js"}, "out.js", opts)
		kind, _ := KindOf(err)
		if kind != KindRequiredOptionMissing {
			rt.Fatalf("kind = %q, want %q", kind, KindRequiredOptionMissing)
		}
		if spy.calls != 0 {
			rt.Fatalf("spawned %d processes", spy.calls)
		}
	})
}

func TestExecutable_InputCountCheckedFirst(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Filter(func(n int) bool { return n != 1 }).Draw(rt, "n")
		inputs := make([]string, n)
		for i := range inputs {
			inputs[i] = "missing-input.txt"
		}
		spy := &spyCommand{}
		f := &ExecutableFilter{Command: spy.command}
		// Options are deliberately invalid too; the input count wins.
		err := f.ProcessAssetFile(context.Background(), inputs, "out", Options{OptExecutableName: Flag(true)})

		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != KindInvalidInputCount || fe.Count != n {
			rt.Fatalf("got %v, want invalid input count %d", err, n)
		}
		if spy.calls != 0 {
			rt.Fatal("spawned a process")
		}
	})
}

func TestExecutable_WrongOptionType(t *testing.T) {
	f := NewExecutableFilter()
	err := f.ProcessAssetFile(context.Background(), []string{"a"}, "b", Options{
		OptExecutableName: String("cp"),
		OptOutputIsStdout: String("yes"),
	})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInvalidOptionType, fe.Kind)
	assert.Equal(t, OptOutputIsStdout, fe.Option)

	err = f.ProcessAssetFile(context.Background(), []string{"a"}, "b", Options{
		OptExecutableName: String("cp"),
		OptTimeout:        String("soon"),
	})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, OptTimeout, fe.Option)
}

func TestExecutable_DirectOutput(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "src", "app.js")
	out := filepath.Join(dir, "work", "nested", "app.js")
	writeFile(t, in, "console.log(1)")

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, out, Options{
		OptExecutableName: String("cp"),
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
}

func TestExecutable_StdoutCaptureIsVerbatim(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out", "out.bin")
	content := "line one\nline two\x00\xff no trailing newline"
	writeFile(t, in, content)

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, out, Options{
		OptExecutableName:         String("cat"),
		OptOutputIsStdout:         Flag(true),
		OptOutputFileArgumentName: String("--never-passed"),
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestExecutable_NonZeroExitInStdoutModeWritesNothing(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	writeFile(t, in, "x")

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, out, Options{
		OptExecutableName: String("false"),
		OptOutputIsStdout: Flag(true),
	})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindExecutableStatus, fe.Kind)
	assert.Equal(t, 1, fe.ExitCode)
	assert.NoFileExists(t, out)
}

func TestExecutable_NonZeroExitEvenWithOutput(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "tool.sh")
	writeFile(t, script, "#!/bin/sh\necho partial > \"$2\"\necho 'syntax error on line 4' >&2\nexit 3\n")
	require.NoError(t, os.Chmod(script, 0o755))
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	writeFile(t, in, "x")

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, out, Options{
		OptExecutableName: String(script),
	})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindExecutableStatus, fe.Kind)
	assert.Equal(t, 3, fe.ExitCode)
	assert.Contains(t, fe.Stderr, "syntax error on line 4")
	assert.NoFileExists(t, out, "partial output must be removed")
}

func TestExecutable_SuccessWithoutOutputIsIOError(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	writeFile(t, in, "x")

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, filepath.Join(dir, "never.txt"), Options{
		OptExecutableName: String("true"),
	})
	kind, _ := KindOf(err)
	assert.Equal(t, KindIO, kind)
}

func TestExecutable_NotFoundIsIOError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	writeFile(t, in, "x")

	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, filepath.Join(dir, "out.txt"), Options{
		OptExecutableName: String("sitepack-no-such-program"),
	})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindIO, kind)
	assert.NoFileExists(t, filepath.Join(dir, "out.txt"))
}

func TestExecutable_Timeout(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	writeFile(t, in, "x")

	start := time.Now()
	err := NewExecutableFilter().ProcessAssetFile(context.Background(), []string{in}, filepath.Join(dir, "out.txt"), Options{
		OptExecutableName: String("sleep"),
		OptExtraArguments: StringList("5"),
		OptOutputIsStdout: Flag(true),
		OptTimeout:        String("100ms"),
	})
	assert.Less(t, time.Since(start), 4*time.Second)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindExecutableStatus, fe.Kind)
	assert.ErrorContains(t, err, "timed out")
}

func TestExecutable_CallerCancellationDoesNotInterrupt(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	writeFile(t, in, "kept")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExecutableFilter().ProcessAssetFile(ctx, []string{in}, out, Options{
		OptExecutableName: String("cat"),
		OptOutputIsStdout: Flag(true),
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestTailKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", tail([]byte("  short \n"), 10))
	// "é" is two bytes; a cut three bytes from the end lands inside it.
	got := tail([]byte("xxxéab"), 3)
	assert.True(t, utf8.ValidString(got), "got %q", got)
	assert.Equal(t, "…ab", got)

	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "stderr")
		n := rapid.IntRange(1, 64).Draw(rt, "n")
		if got := tail([]byte(s), n); utf8.ValidString(s) && !utf8.ValidString(got) {
			rt.Fatalf("tail(%q, %d) = %q is not valid UTF-8", s, n, got)
		}
	})
}
