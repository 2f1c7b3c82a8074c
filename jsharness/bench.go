package main

import (
	"time"

	"github.com/spf13/cobra"

	harness "github.com/dop251/goja_harness"
	"github.com/dop251/goja_harness/bench"
	"github.com/dop251/goja_harness/history"
	"github.com/dop251/goja_harness/stacktrace"
)

func newBenchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench script...",
		Short: "Run benchmark suites",
		Long: `Load the given scripts, which register benchmark suites, then run every
registered suite in order. Each suite prints PROGRESS, then RESULT and SCORE
lines, or an ERROR line if it fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			cfg := a.cfg.Bench

			text := bench.NewTextSink(a.stdout)
			if cfg.SourceMaps {
				text.WithRemapper(stacktrace.NewRemapper())
			}
			sinks := bench.MultiSink{text}

			metrics := a.newMetrics()
			if metrics != nil {
				sinks = append(sinks, metrics)
			}
			var rec *history.Recorder
			if cfg.DB != "" {
				rec = history.NewRecorder(a.engineName(), started)
				sinks = append(sinks, rec)
			}

			var sum bench.Summary
			runErr := a.h.Run(func(s *harness.Session) error {
				reg := bench.NewRegistry()
				err := bench.Install(s, reg, bench.Options{
					MinDuration:   cfg.MinDuration,
					MinIterations: cfg.MinIterations,
				})
				if err != nil {
					return err
				}
				sum, err = bench.NewRunner(sinks, bench.WithLogger(a.logger)).Run(bench.ScriptCollection(s, reg, args...))
				return err
			})
			a.logger.Info("benchmark run finished", "suites", sum.Suites, "errors", sum.Errors, "elapsed", sum.Elapsed)

			a.writeMetrics(metrics)
			if rec != nil {
				run := rec.Run(sum.Elapsed)
				if err := a.saveRun(cmd, run); err != nil {
					a.logger.Error("could not save run", "db", cfg.DB, "error", err)
					if runErr == nil {
						runErr = err
					}
				} else {
					a.logger.Info("run saved", "id", run.ID, "db", cfg.DB)
				}
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.Duration("min-duration", time.Second, "minimum measured time per benchmark")
	f.Int("min-iterations", 32, "minimum measured runs per benchmark")
	f.String("db", "", "record the run in this history database")
	f.Bool("source-maps", true, "map stack positions through <script>.map files")
	bindFlags(a, cmd, map[string]string{
		"min-duration":   "bench.min_duration",
		"min-iterations": "bench.min_iterations",
		"db":             "bench.db",
		"source-maps":    "bench.source_maps",
	}, false)
	return cmd
}

func (a *app) engineName() string {
	v, err := a.engineVersion()
	if err != nil {
		return ""
	}
	return v.Original()
}

func (a *app) saveRun(cmd *cobra.Command, run *history.Run) error {
	store, err := history.Open(a.cfg.Bench.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(cmd.Context(), run)
}
