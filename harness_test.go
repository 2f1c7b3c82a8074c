package harness

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHarness(t *testing.T, opts ...Option) (*Harness, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	h := New(Host{Stdin: strings.NewReader(""), Stdout: &out, Stderr: &out}, opts...)
	require.NoError(t, h.Boot())
	return h, &out
}

func runScript(t *testing.T, h *Harness, src string) error {
	t.Helper()
	return h.Run(func(s *Session) error {
		_, err := s.RunScript("test.js", src)
		return err
	})
}

func TestBootRequiresStdin(t *testing.T) {
	var out bytes.Buffer
	h := New(Host{Stdout: &out})
	err := h.Boot()
	require.Error(t, err)

	var be *BootError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "stdin", be.Capability)
	assert.True(t, errors.Is(err, ErrMissingCapability))
	assert.Equal(t, ExitConfig, ExitCode(err))

	err = runScript(t, h, `print("should not run")`)
	assert.ErrorIs(t, err, ErrNotBooted)
	assert.Empty(t, out.String())
}

func TestBootRequiresStdout(t *testing.T) {
	h := New(Host{Stdin: strings.NewReader("")})
	err := h.Boot()
	var be *BootError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "stdout", be.Capability)
}

func TestBootTwice(t *testing.T) {
	h, _ := newTestHarness(t)
	assert.ErrorIs(t, h.Boot(), ErrAlreadyBooted)
}

func TestPrint(t *testing.T) {
	h, out := newTestHarness(t)
	require.NoError(t, runScript(t, h, `print("a", 1, true, null); print()`))
	assert.Equal(t, "a 1 true null\n\n", out.String())
}

func TestConsoleLogGoesToStdout(t *testing.T) {
	h, out := newTestHarness(t)
	require.NoError(t, runScript(t, h, `console.log("hello")`))
	assert.Equal(t, "hello\n", out.String())
}

func TestReadlineNoop(t *testing.T) {
	h, out := newTestHarness(t)
	require.NoError(t, runScript(t, h, `
		assertNull(readline());
		assertEquals(readFile("-"), "");
		print("done");
	`))
	assert.Equal(t, "done\n", out.String())
}

type linesStdin struct {
	lines []string
}

func (l *linesStdin) ReadLine() (string, bool) {
	if len(l.lines) == 0 {
		return "", false
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, true
}

func TestCustomStdinProvider(t *testing.T) {
	h, out := newTestHarness(t, WithStdin(&linesStdin{lines: []string{"x", "y"}}))
	require.NoError(t, runScript(t, h, `print(readline()); print(readFile("-"))`))
	assert.Equal(t, "x\ny\n", out.String())
}

func TestExit(t *testing.T) {
	h, out := newTestHarness(t)
	err := runScript(t, h, `print("before"); exit(3); print("after")`)
	var ee *ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.Code)
	assert.Equal(t, 3, ExitCode(err))
	assert.Equal(t, "before\n", out.String())

	err = runScript(t, h, `exit()`)
	assert.Equal(t, 0, ExitCode(err))
}

func TestExitStatusOutOfRange(t *testing.T) {
	h, _ := newTestHarness(t)
	for _, src := range []string{`exit(256)`, `exit(-1)`, `exit(1e10)`} {
		err := runScript(t, h, src)
		assert.Equal(t, ExitFailure, ExitCode(err), src)
	}
	assert.Equal(t, 255, ExitCode(runScript(t, h, `exit(255)`)))
}

func TestUncaughtException(t *testing.T) {
	h, _ := newTestHarness(t)
	err := runScript(t, h, `throw new Error("boom")`)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.Equal(t, ExitException, ExitCode(err))
}

func TestLoadRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.js"), []byte(`var answer = 42;`), 0644))
	main := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(main, []byte(`load("lib.js"); assertEquals(answer, 42); print("ok")`), 0644))

	h, out := newTestHarness(t)
	require.NoError(t, h.RunFile(main))
	assert.Equal(t, "ok\n", out.String())
}

func TestLoadPropagatesAssertionFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.js"), []byte(`assertTrue(false);`), 0644))
	main := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(main, []byte(`try { load("lib.js"); } catch (e) {} print("after")`), 0644))

	h, out := newTestHarness(t)
	err := h.RunFile(main)
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Empty(t, out.String())
}

func TestRunFileMissing(t *testing.T) {
	h, _ := newTestHarness(t)
	err := h.RunFile(filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestExtraGlobals(t *testing.T) {
	h, out := newTestHarness(t, WithGlobals(func(s *Session) error {
		return s.Runtime().Set("hostName", "test-host")
	}))
	require.NoError(t, runScript(t, h, `print(hostName)`))
	assert.Equal(t, "test-host\n", out.String())
}

func TestSessionsAreIsolated(t *testing.T) {
	h, out := newTestHarness(t)
	require.NoError(t, runScript(t, h, `var leaked = 1;`))
	require.NoError(t, runScript(t, h, `print(typeof leaked)`))
	assert.Equal(t, "undefined\n", out.String())
}

func TestTimerDoesNotRunAfterFailedAssertion(t *testing.T) {
	h, out := newTestHarness(t)
	for i := 0; i < 50; i++ {
		err := runScript(t, h, `
			setTimeout(function() { print("late"); }, 0);
			setImmediate(function() { print("late"); });
			setInterval(function() { print("late"); }, 1);
			var end = Date.now() + 3;
			while (Date.now() < end) {}
			assertTrue(false);
		`)
		var ae *AssertionError
		require.True(t, errors.As(err, &ae), "got %v", err)
	}
	assert.Empty(t, out.String())
}

func TestTimerException(t *testing.T) {
	h, out := newTestHarness(t)
	err := runScript(t, h, `
		setTimeout(function() { throw new Error("lost"); }, 0);
		setTimeout(function() { print("after"); }, 50);
		print("scheduled");
	`)
	var exc *goja.Exception
	require.True(t, errors.As(err, &exc), "got %v", err)
	assert.Contains(t, exc.Error(), "lost")
	assert.False(t, IsFatal(err))
	assert.Equal(t, ExitException, ExitCode(err))
	assert.Equal(t, "scheduled\n", out.String())
}

func TestTimerArgumentsAndClear(t *testing.T) {
	h, out := newTestHarness(t)
	require.NoError(t, runScript(t, h, `
		var cancelled = setTimeout(function() { print("cancelled"); }, 0);
		clearTimeout(cancelled);
		var n = 0;
		var iv = setInterval(function(tag) {
			if (++n === 2) {
				clearInterval(iv);
				print(tag, n);
			}
		}, 1, "interval");
		setTimeout(function(a, b) { print(a + b); }, 0, 1, 2);
	`))
	assert.Equal(t, "3\ninterval 2\n", out.String())
}

func TestSessionsDoNotLeakTimers(t *testing.T) {
	h, _ := newTestHarness(t)
	require.NoError(t, runScript(t, h, `1`))
	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		err := runScript(t, h, `
			setInterval(function() {}, 1000);
			setTimeout(function() {}, 1000);
			assertTrue(false);
		`)
		require.Error(t, err)
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoadSyntaxErrorIsCatchable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.js"), []byte(`var = ;`), 0644))
	main := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(main, []byte(`
		try { load("bad.js"); } catch (e) { print(e instanceof SyntaxError); }
	`), 0644))

	h, out := newTestHarness(t)
	require.NoError(t, h.RunFile(main))
	assert.Equal(t, "true\n", out.String())
}

func TestLoadSyntaxErrorUncaught(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.js"), []byte(`var = ;`), 0644))
	main := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(main, []byte(`load("bad.js");`), 0644))

	h, _ := newTestHarness(t)
	err := h.RunFile(main)
	var exc *goja.Exception
	require.True(t, errors.As(err, &exc), "got %v", err)
	assert.Equal(t, ExitException, ExitCode(err))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("stream closed")
}

func TestOutputErrorsAreLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := New(Host{Stdin: strings.NewReader(""), Stdout: brokenWriter{}}, WithLogger(logger))
	require.NoError(t, h.Boot())

	require.NoError(t, runScript(t, h, `print("x"); console.log("y"); print("still running")`))
	assert.Equal(t, 3, strings.Count(logs.String(), "script output failed"))
	assert.Contains(t, logs.String(), "stream closed")
}
