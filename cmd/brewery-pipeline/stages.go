package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

var stageNames = stage.Order

var stageShort = map[stage.Name]string{
	stage.Extract:   "Fetch every brewery page into the raw snapshot",
	stage.Convert:   "Flatten the raw snapshot into a typed CSV table",
	stage.Clean:     "Clean the table and write one Parquet unit per state",
	stage.Aggregate: "Count breweries per type and state",
}

func newStageCmd(a *app, name stage.Name) *cobra.Command {
	return &cobra.Command{
		Use:   string(name),
		Short: stageShort[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), name)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), res)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order, stopping at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), p.RunAll(cmd.Context())...)
		},
	}
}

// report prints results as JSON lines and returns an error naming the first
// failed stage.
func report(w io.Writer, results ...stage.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("print result: %w", err)
		}
	}
	for _, res := range results {
		if !res.OK() {
			return fmt.Errorf("stage %s failed (%s): %w", res.Stage, res.Class, res.Err())
		}
	}
	return nil
}
