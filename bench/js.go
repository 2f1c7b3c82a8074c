package bench

import (
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"

	harness "github.com/dop251/goja_harness"
)

// Options control how timed suites measure their benchmarks.
type Options struct {
	// MinDuration is the minimum measured time per benchmark.
	MinDuration time.Duration
	// MinIterations is the minimum number of measured runs per benchmark.
	MinIterations int
	// Now is the clock used for measurements; defaults to time.Now.
	Now func() time.Time
}

var DefaultOptions = Options{
	MinDuration:   time.Second,
	MinIterations: 32,
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Install adds the suite registration globals to the session:
//
//	registerSuite(name, function(report) { report.result(n, v); report.score(v); })
//	new Benchmark(name, run, setup, tearDown)
//	new Benchmark(name, doWarmup, doDeterministic, deterministicIterations, run, setup, tearDown)
//	new BenchmarkSuite(name, reference, [benchmarks...])
//
// Suites are added to reg in registration order.
func Install(s *harness.Session, reg *Registry, opts Options) error {
	vm := s.Runtime()
	if opts.MinIterations <= 0 {
		opts.MinIterations = 1
	}

	register := func(suite Suite) {
		if err := reg.Add(suite); err != nil {
			panic(vm.NewGoError(err))
		}
	}

	if err := vm.Set("registerSuite", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("registerSuite: %s: second argument must be a function", name))
		}
		register(&scriptSuite{vm: vm, name: name, fn: fn})
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := vm.Set("Benchmark", func(call goja.ConstructorCall) *goja.Object {
		b, err := newBenchmark(call.Arguments)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		return vm.ToValue(b).ToObject(vm)
	}); err != nil {
		return err
	}

	return vm.Set("BenchmarkSuite", func(call goja.ConstructorCall) *goja.Object {
		name := call.Argument(0).String()
		suite := &timedSuite{
			name:      name,
			reference: references(call.Argument(1)),
			opts:      opts,
		}
		list, ok := call.Argument(2).Export().([]interface{})
		if !ok {
			panic(vm.NewTypeError("BenchmarkSuite: %s: benchmarks must be an array", name))
		}
		for i, item := range list {
			b, ok := item.(*benchmark)
			if !ok {
				panic(vm.NewTypeError("BenchmarkSuite: %s: element %d is not a Benchmark", name, i))
			}
			suite.benchmarks = append(suite.benchmarks, b)
		}
		register(suite)
		return call.This
	})
}

// ScriptCollection returns a collection that runs the given scripts in s to
// register their suites, then yields everything registered in reg. A script
// that throws makes the whole collection fail.
func ScriptCollection(s *harness.Session, reg *Registry, files ...string) Collection {
	return CollectionFunc(func() ([]Suite, error) {
		for _, f := range files {
			if err := s.RunFile(f); err != nil {
				return nil, err
			}
		}
		return reg.Suites()
	})
}

// scriptSuite is registered with registerSuite; the script reports its own
// measurements.
type scriptSuite struct {
	vm   *goja.Runtime
	name string
	fn   goja.Callable
}

func (s *scriptSuite) Name() string {
	return s.name
}

func (s *scriptSuite) Run(r Reporter) error {
	report := s.vm.NewObject()
	report.Set("result", func(name string, value float64) {
		r.Result(name, value)
	})
	report.Set("score", func(value float64) {
		r.Score(value)
	})
	_, err := s.fn(goja.Undefined(), report)
	return err
}

type benchmark struct {
	name          string
	run           goja.Callable
	setup         goja.Callable
	tearDown      goja.Callable
	warmup        bool
	deterministic bool
	iterations    int
}

func optionalFunc(v goja.Value) goja.Callable {
	fn, _ := goja.AssertFunction(v)
	return fn
}

func arg(args []goja.Value, i int) goja.Value {
	if i < len(args) {
		return args[i]
	}
	return goja.Undefined()
}

func newBenchmark(args []goja.Value) (*benchmark, error) {
	b := &benchmark{name: arg(args, 0).String()}
	if fn, ok := goja.AssertFunction(arg(args, 1)); ok {
		b.run = fn
		b.setup = optionalFunc(arg(args, 2))
		b.tearDown = optionalFunc(arg(args, 3))
		b.warmup = true
		return b, nil
	}

	b.warmup = arg(args, 1).ToBoolean()
	b.deterministic = arg(args, 2).ToBoolean()
	b.iterations = int(arg(args, 3).ToInteger())
	fn, ok := goja.AssertFunction(arg(args, 4))
	if !ok {
		return nil, fmt.Errorf("Benchmark: %s: run must be a function", b.name)
	}
	b.run = fn
	b.setup = optionalFunc(arg(args, 5))
	b.tearDown = optionalFunc(arg(args, 6))
	if b.deterministic && b.iterations <= 0 {
		return nil, fmt.Errorf("Benchmark: %s: deterministic benchmarks need an iteration count", b.name)
	}
	return b, nil
}

func references(v goja.Value) []float64 {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch x := v.Export().(type) {
	case []interface{}:
		refs := make([]float64, 0, len(x))
		for _, item := range x {
			switch n := item.(type) {
			case int64:
				refs = append(refs, float64(n))
			case float64:
				refs = append(refs, n)
			}
		}
		return refs
	}
	return []float64{v.ToFloat()}
}

// timedSuite measures each of its benchmarks and reports a result per
// benchmark and the geometric mean of the results as the score.
type timedSuite struct {
	name       string
	reference  []float64
	benchmarks []*benchmark
	opts       Options
}

func (s *timedSuite) Name() string {
	return s.name
}

func (s *timedSuite) ref(i int) float64 {
	switch {
	case i < len(s.reference):
		return s.reference[i]
	case len(s.reference) > 0:
		return s.reference[0]
	}
	return 0
}

func invoke(fn goja.Callable) error {
	if fn == nil {
		return nil
	}
	_, err := fn(goja.Undefined())
	return err
}

func (s *timedSuite) Run(r Reporter) error {
	results := make([]float64, 0, len(s.benchmarks))
	for i, b := range s.benchmarks {
		meanMillis, err := s.measure(b)
		if err != nil {
			return err
		}
		result := score(s.ref(i), meanMillis)
		results = append(results, result)
		r.Result(b.name, result)
	}
	r.Score(round2(geometricMean(results)))
	return nil
}

// measure returns the mean wall time of one run of b in milliseconds.
func (s *timedSuite) measure(b *benchmark) (float64, error) {
	if err := invoke(b.setup); err != nil {
		return 0, err
	}
	if b.warmup && !b.deterministic {
		if err := invoke(b.run); err != nil {
			return 0, err
		}
	}

	var (
		runs    int
		elapsed time.Duration
	)
	start := s.opts.now()
	for {
		if err := invoke(b.run); err != nil {
			return 0, err
		}
		runs++
		elapsed = s.opts.now().Sub(start)
		if b.deterministic {
			if runs >= b.iterations {
				break
			}
		} else if runs >= s.opts.MinIterations && elapsed >= s.opts.MinDuration {
			break
		}
	}

	if err := invoke(b.tearDown); err != nil {
		return 0, err
	}
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	return float64(elapsed) / float64(time.Millisecond) / float64(runs), nil
}

// score converts a mean run time into a result: relative to the reference
// time when there is one (higher is faster), otherwise runs per second.
func score(reference, meanMillis float64) float64 {
	if reference > 0 {
		return round2(100 * reference / meanMillis)
	}
	return round2(1000 / meanMillis)
}

func geometricMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var logSum float64
	for _, v := range values {
		logSum += math.Log(v)
	}
	return math.Exp(logSum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
