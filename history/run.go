package history

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dop251/goja_harness/bench"
	"github.com/dop251/goja_harness/stacktrace"
)

type Kind string

const (
	KindResult Kind = "result"
	KindScore  Kind = "score"
	KindError  Kind = "error"
)

// Entry is one reported value or suite error of a run.
type Entry struct {
	Suite   string
	Kind    Kind
	Name    string
	Value   float64
	Message string
}

// Run is one benchmark run as stored in the history.
type Run struct {
	ID        string
	StartedAt time.Time
	Engine    string
	Suites    int
	Errors    int
	Elapsed   time.Duration
	// Failure is set when the run as a whole failed.
	Failure string
	Entries []Entry
}

// Recorder is a bench.Sink that builds a Run from the events it receives.
type Recorder struct {
	mu  sync.Mutex
	run Run
}

func NewRecorder(engine string, startedAt time.Time) *Recorder {
	return &Recorder{run: Run{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		Engine:    engine,
	}}
}

func (r *Recorder) Emit(e bench.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e.Kind {
	case bench.Progress:
		r.run.Suites++
	case bench.Error:
		desc, _ := stacktrace.Describe(e.Err)
		r.run.Errors++
		r.run.Entries = append(r.run.Entries, Entry{Suite: e.Suite, Kind: KindError, Message: desc})
	case bench.Result:
		r.run.Entries = append(r.run.Entries, Entry{Suite: e.Suite, Kind: KindResult, Name: e.Name, Value: e.Value})
	case bench.Score:
		r.run.Entries = append(r.run.Entries, Entry{Suite: e.Suite, Kind: KindScore, Value: e.Value})
	}
}

func (r *Recorder) Failure(err error) {
	desc, _ := stacktrace.Describe(err)
	r.mu.Lock()
	r.run.Failure = desc
	r.mu.Unlock()
}

// Run returns the run recorded so far, with elapsed set.
func (r *Recorder) Run(elapsed time.Duration) *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.run
	run.Elapsed = elapsed
	run.Entries = append([]Entry(nil), r.run.Entries...)
	return &run
}

// Delta compares one value between two runs. Change is the relative
// difference in percent; it is NaN when the value is missing from either run
// or the previous value is zero.
type Delta struct {
	Suite      string
	Name       string
	Prev, Curr float64
	InPrev     bool
	InCurr     bool
	Change     float64
}

func (d Delta) Label() string {
	if d.Name == "" {
		return d.Suite + " (score)"
	}
	return d.Suite + "/" + d.Name
}

func (d Delta) String() string {
	switch {
	case !d.InPrev:
		return fmt.Sprintf("%s: new %s", d.Label(), bench.FormatValue(d.Curr))
	case !d.InCurr:
		return fmt.Sprintf("%s: removed (was %s)", d.Label(), bench.FormatValue(d.Prev))
	case math.IsNaN(d.Change):
		return fmt.Sprintf("%s: %s -> %s", d.Label(), bench.FormatValue(d.Prev), bench.FormatValue(d.Curr))
	}
	return fmt.Sprintf("%s: %s -> %s (%+.2f%%)", d.Label(), bench.FormatValue(d.Prev), bench.FormatValue(d.Curr), d.Change)
}

type key struct {
	suite, name string
}

func values(run *Run) map[key]float64 {
	m := make(map[key]float64)
	for _, e := range run.Entries {
		switch e.Kind {
		case KindResult:
			m[key{e.Suite, e.Name}] = e.Value
		case KindScore:
			m[key{e.Suite, ""}] = e.Value
		}
	}
	return m
}

// Compare returns the change of every result and score between prev and
// curr, ordered by suite and then name, scores first.
func Compare(prev, curr *Run) []Delta {
	pv, cv := values(prev), values(curr)
	keys := make(map[key]struct{}, len(pv)+len(cv))
	for k := range pv {
		keys[k] = struct{}{}
	}
	for k := range cv {
		keys[k] = struct{}{}
	}

	deltas := make([]Delta, 0, len(keys))
	for k := range keys {
		d := Delta{Suite: k.suite, Name: k.name, Change: math.NaN()}
		d.Prev, d.InPrev = pv[k]
		d.Curr, d.InCurr = cv[k]
		if d.InPrev && d.InCurr && d.Prev != 0 {
			d.Change = (d.Curr - d.Prev) / d.Prev * 100
		}
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].Suite != deltas[j].Suite {
			return deltas[i].Suite < deltas[j].Suite
		}
		return deltas[i].Name < deltas[j].Name
	})
	return deltas
}
