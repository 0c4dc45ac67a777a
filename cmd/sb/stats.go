package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize your projects",
		Long:  "Shows project counts by status, total value, average progress and the most recently updated projects.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireLogin(); err != nil {
					return err
				}
				st := a.store.Stats()
				fmt.Fprintf(out, "Projects:     %d\n", st.Total)
				fmt.Fprintf(out, "  Pending:     %d\n", st.Pending)
				fmt.Fprintf(out, "  In progress: %d\n", st.InProgress)
				fmt.Fprintf(out, "  Completed:   %d\n", st.Completed)
				fmt.Fprintf(out, "  Cancelled:   %d\n", st.Cancelled)
				fmt.Fprintf(out, "Total value:  %s\n", formatMoney(st.TotalValue))
				fmt.Fprintf(out, "Average:      %s\n", progressBar(st.AverageProgress, 20))

				projects := a.store.RecentProjects(recent)
				if len(projects) == 0 {
					return nil
				}
				fmt.Fprintln(out, "\nRecently updated:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, p := range projects {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
						truncate(p.Title, 40), p.Status, progressBar(p.Progress, 10), p.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&recent, "recent", "n", 5, "number of recently updated projects to list")
	return cmd
}
