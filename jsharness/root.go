package main

import (
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	harness "github.com/dop251/goja_harness"
	"github.com/dop251/goja_harness/corpus"
	"github.com/dop251/goja_harness/internal/config"
	"github.com/dop251/goja_harness/internal/telemetry"
)

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jsharness",
		Short: "JavaScript engine test harness and benchmark runner",
		Long: `jsharness runs JavaScript against the goja engine with a small set of
host globals (print, assertions, exit, load, readFile, readline, console).

Exit status: 0 on success, 1 on a failed assertion or any failed suite or
script, 2 on a configuration or bootstrap error, 64 on an uncaught exception.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./jsharness.yaml)")
	pf.BoolP("verbose", "v", false, "debug logging and source excerpts for failures")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("log-file", "", "also write logs to this file")
	pf.String("metrics-file", "", "write Prometheus metrics to this file")
	pf.String("cpuprofile", "", "write Go CPU profile to file")
	pf.String("js-profile", "", "write JS CPU profile (pprof) to file")
	bindFlags(a, cmd, map[string]string{
		"verbose":      "verbose",
		"log-format":   "log_format",
		"log-file":     "log_file",
		"metrics-file": "metrics_file",
		"cpuprofile":   "profile.cpu",
		"js-profile":   "profile.js",
	}, true)

	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newTestCommand(a))
	cmd.AddCommand(newBenchCommand(a))
	cmd.AddCommand(newHistoryCommand(a))
	return cmd
}

// bindFlags maps flags of cmd to config keys. The binding happens in setup,
// for the command being executed only, since several commands share keys.
func bindFlags(a *app, cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			panic("unknown flag " + name)
		}
		a.flagKeys[f] = key
	}
}

// setup loads the configuration, installs the logger and boots the harness.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := a.flagKeys[f]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return &config.Error{Err: bindErr}
	}

	cfg, err := config.Load(a.v, config.Options{ConfigFile: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := telemetry.NewLogger(a.stderr, telemetry.LogOptions{
		Verbose: cfg.Verbose,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})
	if err != nil {
		return &config.Error{Err: err}
	}
	a.logger, a.closeLog = logger, closer
	slog.SetDefault(logger)
	logger.Debug("starting", "command", cmd.CommandPath())

	a.h = harness.New(harness.Host{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr}, harness.WithLogger(logger))
	if err := a.h.Boot(); err != nil {
		return err
	}
	return a.startProfiles()
}

// engineVersion is the configured engine version, or the version of the
// engine module linked into the binary.
func (a *app) engineVersion() (*semver.Version, error) {
	if s := a.cfg.Corpus.EngineVersion; s != "" {
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, &config.Error{Err: err}
		}
		return v, nil
	}
	return corpus.EngineVersion()
}

// writeMetrics writes m to the configured metrics file, if any.
func (a *app) writeMetrics(m *telemetry.Metrics) {
	if m == nil {
		return
	}
	if err := m.WriteFile(a.cfg.MetricsFile); err != nil {
		a.logger.Warn("could not write metrics", "path", a.cfg.MetricsFile, "error", err)
		return
	}
	a.logger.Debug("metrics written", "path", a.cfg.MetricsFile)
}

func (a *app) newMetrics() *telemetry.Metrics {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	return telemetry.NewMetrics()
}
