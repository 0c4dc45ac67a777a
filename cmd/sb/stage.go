package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/models"
)

func newStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage management commands",
	}

	cmd.AddCommand(newStageAddCmd())
	cmd.AddCommand(newStageListCmd())
	cmd.AddCommand(newStageEditCmd())
	cmd.AddCommand(newStageDeleteCmd())
	return cmd
}

// visibleStage returns a stage whose project the logged-in user takes part in.
func (a *app) visibleStage(id string) (*models.Stage, error) {
	st, err := a.store.Stage(id)
	if err != nil {
		return nil, err
	}
	if _, err := a.visibleProject(st.ProjectID); err != nil {
		return nil, err
	}
	return st, nil
}

func newStageAddCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		order       int
	)

	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a stage to a project",
		Long:  "Adds a stage to a project. Without --order it goes after the last stage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleProject(args[0]); err != nil {
					return err
				}
				st, err := a.store.AddStage(models.Stage{
					ProjectID:   args[0],
					Title:       title,
					Description: description,
					Order:       order,
				})
				if st != nil {
					fmt.Fprintf(out, "Added stage %d. %s (%s)\n", st.Order, st.Title, st.ID)
				}
				return err
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "stage title (required)")
	cmd.Flags().StringVar(&description, "description", "", "stage description")
	cmd.Flags().IntVar(&order, "order", 0, "position within the project (default: last)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newStageListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.visibleProject(args[0]); err != nil {
					return err
				}
				stages := a.store.Stages(args[0])
				if len(stages) == 0 {
					fmt.Fprintln(out, "No stages found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ORDER\tID\tTITLE\tSTATUS\tPROGRESS\tTASKS")
				for _, st := range stages {
					tasks := a.store.Tasks(st.ID)
					done := 0
					for _, t := range tasks {
						if t.Completed {
							done++
						}
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\n",
						st.Order, st.ID, truncate(st.Title, 40), st.Status, progressBar(st.Progress, 10), done, len(tasks))
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newStageEditCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		order       int
	)

	cmd := &cobra.Command{
		Use:   "edit <stage-id>",
		Short: "Edit a stage",
		Long:  "Changes a stage's title, description or position. Progress and status are left as computed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				st, err := a.visibleStage(args[0])
				if err != nil {
					return err
				}
				edit := *st
				if cmd.Flags().Changed("title") {
					edit.Title = title
				}
				if cmd.Flags().Changed("description") {
					edit.Description = description
				}
				if cmd.Flags().Changed("order") {
					edit.Order = order
				}
				updated, err := a.store.UpdateStage(edit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated stage %d. %s\n", updated.Order, updated.Title)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&order, "order", 0, "new position within the project")
	return cmd
}

func newStageDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <stage-id>",
		Short: "Delete a stage",
		Long:  "Deletes a stage and recomputes its project. The stage's tasks are not removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleStage(args[0]); err != nil {
					return err
				}
				if err := a.store.DeleteStage(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted stage %s\n", args[0])
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
