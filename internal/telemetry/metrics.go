// Package telemetry sets up logging and collects run metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dop251/goja_harness/bench"
	"github.com/dop251/goja_harness/corpus"
)

// Metrics collects benchmark and conformance outcomes in a private
// registry. It is a bench.Sink and a corpus.Observer.
type Metrics struct {
	reg *prometheus.Registry

	suites       prometheus.Counter
	suiteErrors  *prometheus.CounterVec
	runFailures  prometheus.Counter
	results      *prometheus.GaugeVec
	scores       *prometheus.GaugeVec
	scripts      *prometheus.CounterVec
	scriptTiming prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		suites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jsharness_bench_suites_total",
			Help: "Benchmark suites started.",
		}),
		suiteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsharness_bench_suite_errors_total",
			Help: "Benchmark suites that reported an error.",
		}, []string{"suite"}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jsharness_bench_run_failures_total",
			Help: "Benchmark runs that failed as a whole.",
		}),
		results: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jsharness_bench_result",
			Help: "Last reported benchmark result.",
		}, []string{"suite", "name"}),
		scores: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jsharness_bench_score",
			Help: "Last reported suite score.",
		}, []string{"suite"}),
		scripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsharness_conformance_scripts_total",
			Help: "Conformance scripts by outcome.",
		}, []string{"status"}),
		scriptTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jsharness_conformance_script_duration_seconds",
			Help:    "Time spent running one conformance script.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.reg.MustRegister(m.suites, m.suiteErrors, m.runFailures, m.results, m.scores, m.scripts, m.scriptTiming)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) Emit(e bench.Event) {
	switch e.Kind {
	case bench.Progress:
		m.suites.Inc()
	case bench.Error:
		m.suiteErrors.WithLabelValues(e.Suite).Inc()
	case bench.Result:
		m.results.WithLabelValues(e.Suite, e.Name).Set(e.Value)
	case bench.Score:
		m.scores.WithLabelValues(e.Suite).Set(e.Value)
	}
}

func (m *Metrics) Failure(error) {
	m.runFailures.Inc()
}

func (m *Metrics) Observe(r corpus.Result) {
	m.scripts.WithLabelValues(r.Status.String()).Inc()
	if r.Status != corpus.Skip {
		m.scriptTiming.Observe(r.Duration.Seconds())
	}
}

// WriteFile writes the metrics in the text exposition format, for the node
// exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
