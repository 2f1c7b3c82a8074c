package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code           int
	stdout, stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	a.envFile = ""
	code := execute(context.Background(), a, args)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(src), 0644))
	return p
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	p := writeScript(t, dir, "ok.js", `assertEquals(2 + 2, 4); print("ok", 1);`)

	r := runCLI(t, "", "run", p)
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "ok 1\n", r.stdout)
}

func TestRunStdin(t *testing.T) {
	r := runCLI(t, `print("from stdin")`, "run")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "from stdin\n", r.stdout)
}

func TestRunExitStatus(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		src    string
		code   int
		stderr string
	}{
		{"assertion", `print("before"); assertTrue(false); print("after")`, 1, "assertTrue failed"},
		{"exception", `throw new Error("boom")`, 64, "Error: boom"},
		{"syntax", `var = ;`, 64, "SyntaxError"},
		{"exit", `exit(3)`, 3, ""},
		{"exit zero", `exit(0); assertUnreachable()`, 0, ""},
		{"exit out of range", `exit(256)`, 1, ""},
		{"timer exception", `setTimeout(function() { throw new Error("late"); }, 0)`, 64, "Error: late"},
		{"timer after assertion", `setTimeout(function() { print("after"); }, 0); assertTrue(false)`, 1, "assertTrue failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeScript(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".js", tt.src)
			r := runCLI(t, "", "run", p)
			assert.Equal(t, tt.code, r.code, r.stderr)
			assert.Contains(t, r.stderr, tt.stderr)
			assert.NotContains(t, r.stdout, "after")
		})
	}
}

func TestBootFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	a := newApp(nil, &out, &errOut)
	a.envFile = ""
	code := execute(context.Background(), a, []string{"run", "-"})
	assert.Equal(t, 2, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "stdin")
}

func TestConfigFailure(t *testing.T) {
	r := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "run", "-")
	assert.Equal(t, 2, r.code)
	assert.Empty(t, r.stdout)
}

func TestBenchScenarios(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.js", `registerSuite("A", function() { throw "boom"; });`)
	b := writeScript(t, dir, "b.js", `registerSuite("B", function(r) { r.result("B", 42); r.score(7); });`)

	r := runCLI(t, "", "bench", b)
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "PROGRESS B\nRESULT B 42\nSCORE 7\n", r.stdout)

	r = runCLI(t, "", "bench", a)
	assert.Equal(t, 1, r.code)
	assert.True(t, strings.HasPrefix(r.stdout, "PROGRESS A\nERROR A boom\n"), r.stdout)
	assert.Contains(t, r.stderr, "benchmark run failed with 1 error(s)")

	r = runCLI(t, "", "bench", a, b)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "PROGRESS B\nRESULT B 42\nSCORE 7\n")
}

func TestBenchTopLevelFailure(t *testing.T) {
	dir := t.TempDir()
	bad := writeScript(t, dir, "bad.js", `throw new Error("broken collection");`)

	r := runCLI(t, "", "bench", bad)
	assert.Equal(t, 1, r.code)
	assert.True(t, strings.HasPrefix(r.stdout, "FAILURE\nError: broken collection\n"), r.stdout)
}

func TestBenchHistory(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	metrics := filepath.Join(dir, "bench.prom")
	b := writeScript(t, dir, "b.js", `registerSuite("B", function(r) { r.result("B", 42); r.score(7); });`)
	c := writeScript(t, dir, "c.js", `registerSuite("B", function(r) { r.result("B", 21); r.score(14); });`)

	r := runCLI(t, "", "bench", "--db", db, "--metrics-file", metrics, b)
	require.Equal(t, 0, r.code, r.stderr)
	r = runCLI(t, "", "bench", "--db", db, c)
	require.Equal(t, 0, r.code, r.stderr)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jsharness_bench_score{suite="B"} 7`)

	r = runCLI(t, "", "history", "--db", db, "list")
	require.Equal(t, 0, r.code, r.stderr)
	lines := strings.Split(strings.TrimRight(r.stdout, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasSuffix(lines[1], "14"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "7"), lines[2])

	r = runCLI(t, "", "history", "--db", db, "compare")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "B (score): 7 -> 14 (+100.00%)\n")
	assert.Contains(t, r.stdout, "B/B: 42 -> 21 (-50.00%)\n")

	r = runCLI(t, "", "history", "list")
	assert.Equal(t, 2, r.code)
}

func TestConformance(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "tests/pass.js", `assertTrue(typeof null === "object");`)
	writeScript(t, dir, "tests/neg.js", "/*---\nnegative:\n  phase: parse\n  type: SyntaxError\n---*/\nvar = ;")
	metrics := filepath.Join(dir, "corpus.prom")

	r := runCLI(t, "", "test", "--metrics-file", metrics, filepath.Join(dir, "tests"))
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "PASS "+filepath.Join(dir, "tests", "pass.js")+"\n")
	assert.Contains(t, r.stdout, "2 scripts: 2 passed, 0 failed, 0 skipped")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jsharness_conformance_scripts_total{status="PASS"} 2`)

	writeScript(t, dir, "tests/fail.js", `assertEquals(1, "1");`)
	r = runCLI(t, "", "test", "--filter", "fail", filepath.Join(dir, "tests"))
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "3 scripts: 0 passed, 1 failed, 2 skipped")

	r = runCLI(t, "", "test", "--filter", "(", filepath.Join(dir, "tests"))
	assert.Equal(t, 2, r.code)

	r = runCLI(t, "", "test", "--engine-version", "not-a-version", filepath.Join(dir, "tests"))
	assert.Equal(t, 2, r.code)
}

func TestExamples(t *testing.T) {
	r := runCLI(t, "", "bench", "--min-iterations", "1", "--min-duration", "1ms",
		"../examples/bench/fib.js", "../examples/bench/strings.js")
	require.Equal(t, 0, r.code, r.stderr)
	lines := strings.Split(strings.TrimRight(r.stdout, "\n"), "\n")
	require.Len(t, lines, 7, r.stdout)
	assert.Equal(t, "PROGRESS Fib", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "RESULT Recursive "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "RESULT Memoized "), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "SCORE "), lines[3])
	assert.Equal(t, "PROGRESS Strings", lines[4])
	assert.Equal(t, "RESULT Split 78", lines[5])

	r = runCLI(t, "", "test",
		"--config", "../examples/conformance/jsharness.yaml",
		"--includes", "../examples/conformance/harness",
		"../examples/conformance/tests")
	require.Equal(t, 0, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "6 scripts: 5 passed, 0 failed, 1 skipped")
	assert.Contains(t, r.stdout, "SKIP ../examples/conformance/tests/language/atomics.js: feature Atomics is not supported")
}
