package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every stage and project once",
		Long: `Recomputes the progress and status of every stage and project from the
stored tasks. Use it after switching propagation to manual, or to repair
aggregates edited outside stageboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				sum, err := reconcile.RunOnce(a.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Checked %d projects and %d stages, %d updated\n", sum.Projects, sum.Stages, sum.Changed)
				for _, e := range sum.Errors {
					fmt.Fprintf(out, "  error: %v\n", e)
				}
				if len(sum.Errors) > 0 {
					return fmt.Errorf("reconcile: %d records failed", len(sum.Errors))
				}
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
