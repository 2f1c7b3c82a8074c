package main

import (
	"github.com/spf13/cobra"

	"github.com/dop251/goja_harness/corpus"
	"github.com/dop251/goja_harness/internal/config"
)

func newTestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test path...",
		Short: "Run a conformance corpus",
		Long: `Run every .js file under the given paths as a conformance script and
print PASS, FAIL or SKIP for each, followed by a summary.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Corpus
			filter, err := corpus.NewFilter(cfg.Filter, cfg.SkipPrefixes, cfg.SkipFeatures)
			if err != nil {
				return &config.Error{Err: err}
			}

			opts := []corpus.Option{
				corpus.WithFilter(filter),
				corpus.WithIncludes(cfg.IncludesDir, cfg.Prelude...),
				corpus.WithFailFast(cfg.FailFast),
				corpus.WithVerbose(a.cfg.Verbose),
				corpus.WithLogger(a.logger),
			}
			if v, err := a.engineVersion(); err == nil {
				a.logger.Debug("checking engine constraints", "version", v.String())
				opts = append(opts, corpus.WithEngineVersion(v))
			} else if cfg.EngineVersion != "" {
				return err
			} else {
				a.logger.Warn("engine version is not known, engine constraints are not checked", "error", err)
			}

			metrics := a.newMetrics()
			if metrics != nil {
				opts = append(opts, corpus.WithObserver(metrics))
			}
			sum, err := corpus.NewRunner(a.h, a.stdout, opts...).Run(args)
			a.logger.Info("conformance run finished",
				"passed", sum.Passed, "failed", sum.Failed, "skipped", sum.Skipped, "elapsed", sum.Elapsed)
			a.writeMetrics(metrics)
			return err
		},
	}

	f := cmd.Flags()
	f.String("filter", "", "only run scripts whose path matches this ECMAScript regular expression")
	f.Bool("fail-fast", false, "stop after the first failing script")
	f.String("includes", "", "directory that frontmatter includes are loaded from")
	f.String("engine-version", "", "engine version to check engine constraints against")
	bindFlags(a, cmd, map[string]string{
		"filter":         "corpus.filter",
		"fail-fast":      "corpus.fail_fast",
		"includes":       "corpus.includes_dir",
		"engine-version": "corpus.engine_version",
	}, false)
	return cmd
}
