package history

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dop251/goja_harness/bench"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recordRun(startedAt time.Time, score float64) *Run {
	rec := NewRecorder("v1.0.0", startedAt)
	rec.Emit(bench.Event{Kind: bench.Progress, Suite: "A"})
	rec.Emit(bench.Event{Kind: bench.Error, Suite: "A", Err: errors.New("boom")})
	rec.Emit(bench.Event{Kind: bench.Progress, Suite: "B"})
	rec.Emit(bench.Event{Kind: bench.Result, Suite: "B", Name: "B", Value: 42})
	rec.Emit(bench.Event{Kind: bench.Score, Suite: "B", Value: score})
	return rec.Run(3 * time.Second)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestRecorder(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := recordRun(started, 7)

	_, err := uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, 2, run.Suites)
	assert.Equal(t, 1, run.Errors)
	assert.Equal(t, 3*time.Second, run.Elapsed)
	assert.Equal(t, []Entry{
		{Suite: "A", Kind: KindError, Message: "boom"},
		{Suite: "B", Kind: KindResult, Name: "B", Value: 42},
		{Suite: "B", Kind: KindScore, Value: 7},
	}, run.Entries)

	rec := NewRecorder("", started)
	rec.Failure(errors.New("malformed collection"))
	assert.Equal(t, "malformed collection", rec.Run(0).Failure)
	assert.NotEqual(t, run.ID, rec.Run(0).ID)
}

func TestSaveAndLatest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := recordRun(base, 5)
	second := recordRun(base.Add(time.Hour), 7)
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	runs, err := s.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0])
	assert.Equal(t, first, runs[1])

	runs, err = s.Latest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.ID, runs[0].ID)

	assert.Error(t, s.Save(ctx, first), "duplicate id")
}

func TestGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	run := recordRun(time.Unix(0, 0), 1)
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = s.Get(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompare(t *testing.T) {
	prev := &Run{Entries: []Entry{
		{Suite: "A", Kind: KindResult, Name: "x", Value: 100},
		{Suite: "A", Kind: KindScore, Value: 50},
		{Suite: "Gone", Kind: KindScore, Value: 1},
		{Suite: "Z", Kind: KindScore, Value: 0},
	}}
	curr := &Run{Entries: []Entry{
		{Suite: "A", Kind: KindResult, Name: "x", Value: 110},
		{Suite: "A", Kind: KindScore, Value: 40},
		{Suite: "A", Kind: KindError, Message: "ignored"},
		{Suite: "New", Kind: KindScore, Value: 3},
		{Suite: "Z", Kind: KindScore, Value: 2},
	}}

	deltas := Compare(prev, curr)
	require.Len(t, deltas, 5)

	var lines []string
	for _, d := range deltas {
		lines = append(lines, d.String())
	}
	assert.Equal(t, []string{
		"A (score): 50 -> 40 (-20.00%)",
		"A/x: 100 -> 110 (+10.00%)",
		"Gone (score): removed (was 1)",
		"New (score): new 3",
		"Z (score): 0 -> 2",
	}, lines)
	assert.InDelta(t, 10, deltas[1].Change, 1e-9)
	assert.True(t, math.IsNaN(deltas[4].Change))
}
