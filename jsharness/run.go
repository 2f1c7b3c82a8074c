package main

import (
	"io"

	"github.com/spf13/cobra"

	harness "github.com/dop251/goja_harness"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [script...]",
		Short: "Run scripts in one session",
		Long: `Run the given scripts in order in a single session. With no arguments,
or with "-", the script is read from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}
			return a.h.Run(func(s *harness.Session) error {
				for _, p := range args {
					if err := a.runScript(s, p); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (a *app) runScript(s *harness.Session, path string) error {
	if path != "-" {
		a.logger.Debug("running script", "path", path)
		return s.RunFile(path)
	}
	src, err := io.ReadAll(a.stdin)
	if err != nil {
		return err
	}
	_, err = s.RunScript("<stdin>", string(src))
	return err
}
