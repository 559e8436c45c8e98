package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/runstate"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

func newStatusCmd(a *app) *cobra.Command {
	var history int64

	cmd := &cobra.Command{
		Use:   "status [stage]",
		Short: "Show recorded stage results from the run ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.ledger == nil {
				return errors.New("run ledger not configured (set --redis-addr)")
			}

			names := stage.Order
			if len(args) == 1 {
				name, err := stage.ParseName(args[0])
				if err != nil {
					return err
				}
				names = []stage.Name{name}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tSTATUS\tCLASS\tSTARTED\tDURATION\tROWS OUT\tRUN ID")
			for _, name := range names {
				var results []stage.Result
				if history > 1 {
					rs, err := a.ledger.History(cmd.Context(), name, history)
					if err != nil {
						return err
					}
					results = rs
				} else {
					res, err := a.ledger.Last(cmd.Context(), name)
					if errors.Is(err, runstate.ErrNoResult) {
						fmt.Fprintf(tw, "%s\tnever run\t\t\t\t\t\n", name)
						continue
					}
					if err != nil {
						return err
					}
					results = []stage.Result{res}
				}
				for _, res := range results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						res.Stage, res.Status, res.Class,
						res.StartedAt.Local().Format(time.DateTime),
						res.Duration.Round(time.Millisecond),
						res.RowsOut, res.RunID)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&history, "history", 1, "number of recent results per stage")
	return cmd
}
