package bench

import (
	"fmt"
	"log/slog"
	"time"

	harness "github.com/dop251/goja_harness"
)

// Summary is the outcome of one run. Errors is the number of suites that
// failed.
type Summary struct {
	Suites  int
	Errors  int
	Elapsed time.Duration
}

func (s Summary) OK() bool {
	return s.Errors == 0
}

// FailedError is returned when one or more suites failed.
type FailedError struct {
	Errors int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("benchmark run failed with %d error(s)", e.Errors)
}

func (e *FailedError) ExitCode() int {
	return harness.ExitFailure
}

// RunError is returned when the run itself failed, outside of any suite.
type RunError struct {
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("benchmark run failed: %v", e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) ExitCode() int {
	return harness.ExitFailure
}

// Runner executes the suites of a collection strictly one after another.
type Runner struct {
	sink   Sink
	logger *slog.Logger
}

type RunnerOption func(*Runner)

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(sink Sink, opts ...RunnerOption) *Runner {
	r := &Runner{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every suite of c in order. A failing suite is reported with
// an Error event and the run moves on to the next one. The returned error is
// a *FailedError if any suite failed, a *RunError if the collection itself
// could not be run, or the fatal error of a script that failed an assertion
// or called exit().
func (r *Runner) Run(c Collection) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		sum.Elapsed = time.Since(start)
		if x := recover(); x != nil {
			err = r.fail(fmt.Errorf("panic: %v", x))
		}
	}()

	suites, err := c.Suites()
	if err != nil {
		if harness.IsFatal(err) {
			return sum, err
		}
		return sum, r.fail(err)
	}

	for _, s := range suites {
		name := s.Name()
		r.sink.Emit(Event{Kind: Progress, Suite: name})
		sum.Suites++

		suiteStart := time.Now()
		err := r.runSuite(s)
		if err == nil {
			r.logger.Debug("suite finished", "suite", name, "elapsed", time.Since(suiteStart))
			continue
		}
		if harness.IsFatal(err) {
			return sum, err
		}
		sum.Errors++
		r.logger.Warn("suite failed", "suite", name, "error", err)
		r.sink.Emit(Event{Kind: Error, Suite: name, Err: err})
	}

	if sum.Errors > 0 {
		return sum, &FailedError{Errors: sum.Errors}
	}
	return sum, nil
}

func (r *Runner) runSuite(s Suite) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if e, ok := x.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", x)
			}
		}
	}()
	return s.Run(&suiteReporter{sink: r.sink, suite: s.Name()})
}

func (r *Runner) fail(err error) error {
	r.logger.Error("benchmark run failed", "error", err)
	if fs, ok := r.sink.(FailureSink); ok {
		fs.Failure(err)
	}
	return &RunError{Err: err}
}

type suiteReporter struct {
	sink  Sink
	suite string
}

func (r *suiteReporter) Result(name string, value float64) {
	r.sink.Emit(Event{Kind: Result, Suite: r.suite, Name: name, Value: value})
}

func (r *suiteReporter) Score(value float64) {
	r.sink.Emit(Event{Kind: Score, Suite: r.suite, Value: value})
}
