// Command jsharness runs JavaScript test scripts, conformance corpora and
// benchmark suites against the goja engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"runtime/pprof"

	"github.com/dop251/goja"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	harness "github.com/dop251/goja_harness"
	"github.com/dop251/goja_harness/bench"
	"github.com/dop251/goja_harness/corpus"
	"github.com/dop251/goja_harness/internal/config"
	"github.com/dop251/goja_harness/profiling"
)

// app is the state shared by all commands of one invocation.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	v          *viper.Viper
	flagKeys   map[*pflag.Flag]string
	configFile string
	envFile    string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog io.Closer
	h        *harness.Harness

	cpuProfile *os.File
	jsProfile  *profiling.Profiler
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		v:        config.New(),
		flagKeys: make(map[*pflag.Flag]string),
		envFile:  ".env",
		logger:   slog.New(slog.NewTextHandler(stderr, nil)),
	}
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, a *app, args []string) int {
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	a.teardown()
	if err == nil {
		return 0
	}
	reportError(a.stderr, err)
	return harness.ExitCode(err)
}

func reportError(w io.Writer, err error) {
	var (
		exitErr  *harness.ExitError
		exc      *goja.Exception
		intr     *goja.InterruptedError
		benchErr *bench.FailedError
		testErr  *corpus.FailedError
	)
	switch {
	case errors.As(err, &exitErr):
	case errors.As(err, &benchErr), errors.As(err, &testErr):
		// the report has been written already
		fmt.Fprintln(w, err)
	case errors.As(err, &exc):
		fmt.Fprintln(w, exc.String())
	case errors.As(err, &intr):
		fmt.Fprintln(w, intr.String())
	default:
		fmt.Fprintln(w, err)
	}
}

// startProfiles starts the profilers requested by the configuration.
func (a *app) startProfiles() error {
	if path := a.cfg.Profile.CPU; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		a.cpuProfile = f
	}
	if path := a.cfg.Profile.JS; path != "" {
		p, err := profiling.Start(path)
		if err != nil {
			return err
		}
		a.jsProfile = p
	}
	return nil
}

func (a *app) teardown() {
	if a.cpuProfile != nil {
		pprof.StopCPUProfile()
		a.cpuProfile.Close()
		a.cpuProfile = nil
	}
	if a.jsProfile != nil {
		prof, err := a.jsProfile.Stop()
		if err != nil {
			a.logger.Error("JS profile failed", "error", err)
		} else {
			for _, e := range profiling.Top(prof, a.cfg.Profile.Top) {
				a.logger.Info("JS profile", "func", e.Func, "file", e.File, "samples", e.Flat, "percent", fmt.Sprintf("%.2f", e.FlatPct))
			}
		}
		a.jsProfile = nil
	}
	if a.closeLog != nil {
		a.closeLog.Close()
		a.closeLog = nil
	}
}

func main() {
	defer func() {
		if x := recover(); x != nil {
			os.Stderr.Write(debug.Stack())
			panic(x)
		}
	}()
	os.Exit(execute(context.Background(), newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:]))
}
