package corpus

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/dop251/goja"

	harness "github.com/dop251/goja_harness"
	"github.com/dop251/goja_harness/stacktrace"
)

type Option func(*Runner)

func WithFilter(f *Filter) Option {
	return func(r *Runner) {
		r.filter = f
	}
}

// WithIncludes sets the directory that frontmatter includes are resolved
// against. The prelude files are loaded from it before every script.
func WithIncludes(dir string, prelude ...string) Option {
	return func(r *Runner) {
		r.includesDir = dir
		r.prelude = prelude
	}
}

// WithEngineVersion enables engine constraint checks. Without it scripts
// with an engine constraint are run regardless.
func WithEngineVersion(v *semver.Version) Option {
	return func(r *Runner) {
		r.engine = v
	}
}

func WithFailFast(b bool) Option {
	return func(r *Runner) {
		r.failFast = b
	}
}

// WithVerbose adds the source lines around the failure to failure details.
func WithVerbose(b bool) Option {
	return func(r *Runner) {
		r.verbose = b
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// Runner runs conformance scripts and writes a PASS/FAIL/SKIP line for each
// of them, followed by a summary line.
type Runner struct {
	h   *harness.Harness
	out io.Writer

	filter      *Filter
	includesDir string
	prelude     []string
	engine      *semver.Version
	failFast    bool
	verbose     bool
	logger      *slog.Logger
	observers   []Observer
}

func NewRunner(h *harness.Harness, out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		h:      h,
		out:    out,
		logger: h.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run discovers the scripts under paths and runs them in order. It returns
// a *FailedError if any script failed.
func (r *Runner) Run(paths []string) (Summary, error) {
	var sum Summary
	start := time.Now()

	files, err := Discover(paths)
	if err != nil {
		return sum, err
	}
	r.logger.Debug("discovered scripts", "count", len(files))

	for _, f := range files {
		res := r.RunScript(f)
		sum.add(res)
		writeResult(r.out, res)
		for _, o := range r.observers {
			o.Observe(res)
		}
		if res.Status == Fail && r.failFast {
			r.logger.Info("stopping after first failure", "script", f)
			break
		}
	}

	sum.Elapsed = time.Since(start)
	fmt.Fprintln(r.out, sum.String())
	if sum.Failed > 0 {
		return sum, &FailedError{Failed: sum.Failed}
	}
	return sum, nil
}

// RunScript runs a single script file in every mode it asks for.
func (r *Runner) RunScript(path string) Result {
	start := time.Now()
	res := r.runScript(path)
	res.Name = path
	res.Duration = time.Since(start)
	r.logger.Debug("script finished", "script", path, "status", res.Status.String(), "duration", res.Duration)
	return res
}

func (r *Runner) runScript(path string) Result {
	sc, err := ParseFile(path)
	if err != nil {
		return Result{Status: Fail, Reason: "could not parse: " + err.Error()}
	}
	if reason, skip := r.filter.Skip(sc); skip {
		return Result{Status: Skip, Reason: reason}
	}
	if sc.Meta.HasFlag("module") {
		return Result{Status: Skip, Reason: "modules are not supported"}
	}
	if sc.Meta.Engine != "" && r.engine != nil {
		ok, err := Satisfies(sc.Meta.Engine, r.engine)
		if err != nil {
			return Result{Status: Fail, Reason: fmt.Sprintf("invalid engine constraint %q: %v", sc.Meta.Engine, err)}
		}
		if !ok {
			return Result{Status: Skip, Reason: fmt.Sprintf("requires engine %s, have %s", sc.Meta.Engine, r.engine)}
		}
	}

	raw := sc.Meta.HasFlag("raw")
	if raw || !sc.Meta.HasFlag("onlyStrict") {
		if f := r.execute(sc, false); f != nil {
			return Result{Status: Fail, Reason: f.reason, Detail: f.detail}
		}
	}
	if !raw && !sc.Meta.HasFlag("noStrict") {
		if f := r.execute(sc, true); f != nil {
			return Result{Status: Fail, Reason: f.reason + " (strict mode)", Detail: f.detail}
		}
	}
	return Result{Status: Pass}
}

type failure struct {
	reason string
	detail string
}

type asyncState struct {
	done    bool
	failure string
}

type phase int

const (
	phaseParse phase = iota
	phaseRuntime
)

// execute runs sc once in a fresh session and returns nil if it behaved as
// its frontmatter says it should.
func (r *Runner) execute(sc *Script, strict bool) *failure {
	var (
		f     *failure
		async asyncState
	)
	isAsync := sc.Meta.HasFlag("async")

	err := r.h.Run(func(s *harness.Session) error {
		if err := r.installHost(s, &async); err != nil {
			return err
		}
		for _, inc := range r.includes(sc) {
			if err := s.RunFile(filepath.Join(r.includesDir, inc)); err != nil {
				desc, _ := stacktrace.Describe(err)
				f = &failure{reason: fmt.Sprintf("include %s: %s", inc, desc)}
				return nil
			}
		}

		src := sc.Source
		if strict {
			src = "'use strict';\n" + src
		}
		prg, err := s.Compile(sc.Path, src, false)
		if err != nil {
			f = r.judge(s, sc, err, phaseParse)
			return nil
		}
		_, err = s.RunProgram(prg)
		f = r.judge(s, sc, err, phaseRuntime)
		return nil
	})

	if err != nil && f == nil {
		if !cleanExit(err) {
			desc, _ := stacktrace.Describe(err)
			return &failure{reason: desc}
		}
	}
	if f == nil && isAsync && sc.Meta.Negative.Type == "" {
		switch {
		case async.failure != "":
			return &failure{reason: async.failure}
		case !async.done:
			return &failure{reason: "$DONE was not called"}
		}
	}
	return f
}

func cleanExit(err error) bool {
	var ee *harness.ExitError
	return errors.As(err, &ee) && ee.Code == 0
}

func (r *Runner) includes(sc *Script) []string {
	if len(r.prelude) == 0 {
		return sc.Meta.Includes
	}
	return append(append([]string(nil), r.prelude...), sc.Meta.Includes...)
}

// installHost adds $262 and $DONE to the session.
func (r *Runner) installHost(s *harness.Session, async *asyncState) error {
	vm := s.Runtime()
	host := vm.NewObject()
	if err := host.Set("global", vm.GlobalObject()); err != nil {
		return err
	}
	if err := host.Set("evalScript", func(call goja.FunctionCall) goja.Value {
		v, err := s.RunScript("evalScript", call.Argument(0).String())
		if err != nil {
			return s.Rethrow(err)
		}
		return v
	}); err != nil {
		return err
	}
	if err := host.Set("gc", func() {}); err != nil {
		return err
	}
	if err := vm.Set("$262", host); err != nil {
		return err
	}
	return vm.Set("$DONE", func(call goja.FunctionCall) goja.Value {
		if v := call.Argument(0); !goja.IsUndefined(v) {
			if async.failure == "" {
				async.failure = "Test262:AsyncTestFailure:" + v.String()
			}
		} else {
			async.done = true
		}
		return goja.Undefined()
	})
}

// judge compares the outcome of a run with what the frontmatter expects.
func (r *Runner) judge(s *harness.Session, sc *Script, err error, ph phase) *failure {
	if err != nil && harness.IsFatal(err) {
		if !cleanExit(err) {
			return &failure{reason: err.Error()}
		}
		err = nil
	}

	neg := sc.Meta.Negative
	if neg.Type == "" {
		if err == nil {
			return nil
		}
		desc, trace := stacktrace.Describe(err)
		return &failure{reason: desc, detail: r.detail(s, trace)}
	}

	if err == nil {
		return &failure{reason: fmt.Sprintf("expected %s during %s phase, but no error was raised", neg.Type, neg.Phase)}
	}
	early := ph == phaseParse
	if (neg.Phase == "parse" || neg.Phase == "early") && !early || neg.Phase == "runtime" && early {
		desc, _ := stacktrace.Describe(err)
		return &failure{reason: fmt.Sprintf("error %s happened at the wrong phase (expected %s)", desc, neg.Phase)}
	}
	if typ := errorType(err); typ != neg.Type {
		desc, trace := stacktrace.Describe(err)
		return &failure{
			reason: fmt.Sprintf("unexpected error type (%s), expected (%s)", typ, neg.Type),
			detail: strings.TrimSpace(desc + "\n" + r.detail(s, trace)),
		}
	}
	return nil
}

func errorType(err error) string {
	var (
		ex  *goja.Exception
		se  *goja.CompilerSyntaxError
		ref *goja.CompilerReferenceError
	)
	switch {
	case errors.As(err, &se):
		return "SyntaxError"
	case errors.As(err, &ref):
		return "ReferenceError"
	case errors.As(err, &ex):
		o, ok := ex.Value().(*goja.Object)
		if !ok {
			return ""
		}
		c, ok := o.Get("constructor").(*goja.Object)
		if !ok {
			return ""
		}
		return c.Get("name").String()
	}
	return ""
}

func (r *Runner) detail(s *harness.Session, trace stacktrace.Trace) string {
	if len(trace) == 0 {
		return ""
	}
	detail := trace.String()
	if !r.verbose {
		return detail
	}
	for _, fr := range trace {
		if fr.Native || fr.File == "" {
			continue
		}
		if src, ok := s.Source(fr.File); ok {
			if cf := stacktrace.CodeFrame(src, fr.Line, fr.Column, 2); cf != "" {
				return detail + "\n" + cf
			}
		}
	}
	return detail
}
