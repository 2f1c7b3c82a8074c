package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dop251/goja_harness/bench"
	"github.com/dop251/goja_harness/history"
	"github.com/dop251/goja_harness/internal/config"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded benchmark runs",
	}
	cmd.PersistentFlags().String("db", "", "history database")
	bindFlags(a, cmd, map[string]string{"db": "bench.db"}, true)

	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Latest(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tENGINE\tSUITES\tERRORS\tELAPSED\tSCORE")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\t%s\n",
					run.ID[:8], run.StartedAt.Format(time.RFC3339), run.Engine,
					run.Suites, run.Errors, run.Elapsed.Round(time.Millisecond), totalScore(run))
			}
			return w.Flush()
		},
	}
	list.Flags().Int("limit", 10, "number of runs to show")

	compare := &cobra.Command{
		Use:   "compare [old-id new-id]",
		Short: "Compare two runs, by default the two most recent",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 run ids, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			var prev, curr *history.Run
			if len(args) == 2 {
				if prev, err = store.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
				if curr, err = store.Get(cmd.Context(), args[1]); err != nil {
					return err
				}
			} else {
				runs, err := store.Latest(cmd.Context(), 2)
				if err != nil {
					return err
				}
				if len(runs) < 2 {
					return errors.New("need at least two recorded runs to compare")
				}
				curr, prev = runs[0], runs[1]
			}

			fmt.Fprintf(a.stdout, "%s -> %s\n", prev.ID[:8], curr.ID[:8])
			for _, d := range history.Compare(prev, curr) {
				fmt.Fprintln(a.stdout, d.String())
			}
			return nil
		},
	}

	cmd.AddCommand(list, compare)
	return cmd
}

func (a *app) openHistory() (*history.Store, error) {
	if a.cfg.Bench.DB == "" {
		return nil, &config.Error{Err: errors.New("no history database; set --db or bench.db")}
	}
	return history.Open(a.cfg.Bench.DB)
}

// totalScore is the score of the run if it has exactly one suite score.
func totalScore(run *history.Run) string {
	var (
		score float64
		n     int
	)
	for _, e := range run.Entries {
		if e.Kind == history.KindScore {
			score = e.Value
			n++
		}
	}
	switch n {
	case 0:
		return "-"
	case 1:
		return bench.FormatValue(score)
	}
	return fmt.Sprintf("%d suites", n)
}
