package bench

import (
	"fmt"
	"io"
	"sync"

	"github.com/dop251/goja_harness/stacktrace"
)

// Sink receives the events of a run, in order.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) {
	f(e)
}

// FailureSink is implemented by sinks that want to be told about a failure
// of the run itself, as opposed to a failure of one suite.
type FailureSink interface {
	Failure(err error)
}

// TextSink writes the line-oriented report:
//
//	PROGRESS <name>
//	ERROR <name> <description>
//	RESULT <name> <value>
//	SCORE <value>
//
// An ERROR line is followed by the stack of the error when there is one. A
// failure of the run prints FAILURE followed by the error.
type TextSink struct {
	w     io.Writer
	remap *stacktrace.Remapper
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// WithRemapper makes the sink rewrite stack positions through source maps.
func (s *TextSink) WithRemapper(r *stacktrace.Remapper) *TextSink {
	s.remap = r
	return s
}

func (s *TextSink) Emit(e Event) {
	switch e.Kind {
	case Progress:
		fmt.Fprintf(s.w, "PROGRESS %s\n", e.Suite)
	case Error:
		desc, trace := stacktrace.Describe(e.Err)
		fmt.Fprintf(s.w, "ERROR %s %s\n", e.Suite, desc)
		s.writeTrace(trace)
	case Result:
		fmt.Fprintf(s.w, "RESULT %s %s\n", e.Name, FormatValue(e.Value))
	case Score:
		fmt.Fprintf(s.w, "SCORE %s\n", FormatValue(e.Value))
	}
}

func (s *TextSink) Failure(err error) {
	desc, trace := stacktrace.Describe(err)
	fmt.Fprintf(s.w, "FAILURE\n%s\n", desc)
	s.writeTrace(trace)
}

func (s *TextSink) writeTrace(trace stacktrace.Trace) {
	if len(trace) == 0 {
		return
	}
	fmt.Fprintln(s.w, s.remap.Remap(trace).String())
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	failure error
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Failure(err error) {
	r.mu.Lock()
	r.failure = err
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) FailureErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

// MultiSink delivers each event to all sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

func (m MultiSink) Failure(err error) {
	for _, s := range m {
		if fs, ok := s.(FailureSink); ok {
			fs.Failure(err)
		}
	}
}
