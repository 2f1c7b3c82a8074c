package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), Options{SearchPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, time.Second, cfg.Bench.MinDuration)
	assert.Equal(t, 32, cfg.Bench.MinIterations)
	assert.True(t, cfg.Bench.SourceMaps)
	assert.Equal(t, 10, cfg.Profile.Top)
	assert.Empty(t, cfg.Corpus.SkipFeatures)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jsharness.yaml"), []byte(`
verbose: true
log_format: json
corpus:
  filter: "^built-ins/"
  includes_dir: harness
  prelude: [assert.js, sta.js]
  skip_features: [Atomics, SharedArrayBuffer]
bench:
  min_duration: 250ms
  min_iterations: 8
`), 0644))

	cfg, err := Load(New(), Options{SearchPaths: []string{dir}})
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "^built-ins/", cfg.Corpus.Filter)
	assert.Equal(t, []string{"assert.js", "sta.js"}, cfg.Corpus.Prelude)
	assert.Equal(t, []string{"Atomics", "SharedArrayBuffer"}, cfg.Corpus.SkipFeatures)
	assert.Equal(t, 250*time.Millisecond, cfg.Bench.MinDuration)
	assert.Equal(t, 8, cfg.Bench.MinIterations)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("JSHARNESS_BENCH_MIN_ITERATIONS", "4")
	t.Setenv("JSHARNESS_CORPUS_FAIL_FAST", "true")

	cfg, err := Load(New(), Options{SearchPaths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Bench.MinIterations)
	assert.True(t, cfg.Corpus.FailFast)
}

func TestLoadEnvFile(t *testing.T) {
	const name = "JSHARNESS_BENCH_DB"
	t.Setenv(name, "")
	os.Unsetenv(name)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(name+"=history.db\n"), 0644))

	cfg, err := Load(New(), Options{SearchPaths: []string{dir}, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "history.db", cfg.Bench.DB)

	_, err = Load(New(), Options{SearchPaths: []string{dir}, EnvFile: filepath.Join(dir, "missing.env")})
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(New(), Options{ConfigFile: filepath.Join(dir, "missing.yaml")})
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.ExitCode())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bench:\n  min_iterations: 0\n"), 0644))
	_, err = Load(New(), Options{ConfigFile: bad})
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "min_iterations")

	badFormat := filepath.Join(dir, "format.yaml")
	require.NoError(t, os.WriteFile(badFormat, []byte("log_format: xml\n"), 0644))
	_, err = Load(New(), Options{ConfigFile: badFormat})
	assert.Error(t, err)
}
