package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/models"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskToggleCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		done        bool
		order       int
	)

	cmd := &cobra.Command{
		Use:   "add <stage-id>",
		Short: "Add a task to a stage",
		Long:  "Adds a task to a stage and recomputes the stage and its project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleStage(args[0]); err != nil {
					return err
				}
				t, err := a.store.AddTask(models.Task{
					StageID:     args[0],
					Title:       title,
					Description: description,
					Completed:   done,
					Order:       order,
				})
				if t != nil {
					fmt.Fprintf(out, "Added task %s (%s)\n", t.Title, t.ID)
				}
				return err
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().BoolVar(&done, "done", false, "create the task already completed")
	cmd.Flags().IntVar(&order, "order", 0, "position within the stage (default: last)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <stage-id>",
		Short: "List a stage's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.visibleStage(args[0]); err != nil {
					return err
				}
				tasks := a.store.Tasks(args[0])
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No tasks found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ORDER\tID\tTITLE\tDONE")
				for _, t := range tasks {
					done := "no"
					if t.Completed {
						done = "yes"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.Order, t.ID, truncate(t.Title, 50), done)
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// printAggregates shows where a task change left its stage and project.
func printAggregates(out io.Writer, a *app, t *models.Task) {
	if st, err := a.store.Stage(t.StageID); err == nil {
		fmt.Fprintf(out, "  Stage   %-20s %s\n", truncate(st.Title, 20), progressBar(st.Progress, 10))
	}
	if p, err := a.store.Project(t.ProjectID); err == nil {
		fmt.Fprintf(out, "  Project %-20s %s\n", truncate(p.Title, 20), progressBar(p.Progress, 10))
	}
}

// visibleTask returns a task whose project the logged-in user takes part in.
func (a *app) visibleTask(id string) (*models.Task, error) {
	t, err := a.store.Task(id)
	if err != nil {
		return nil, err
	}
	if _, err := a.visibleProject(t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

func newTaskToggleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Flip a task between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleTask(args[0]); err != nil {
					return err
				}
				t, err := a.store.ToggleTask(args[0])
				if t == nil {
					return err
				}
				state := "not done"
				if t.Completed {
					state = "done"
				}
				fmt.Fprintf(out, "Task %s is %s\n", t.Title, state)
				printAggregates(out, a, t)
				return err
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskMoveCmd() *cobra.Command {
	var (
		configPath string
		order      int
	)

	cmd := &cobra.Command{
		Use:   "move <task-id> <stage-id>",
		Short: "Move a task to another stage",
		Long:  "Moves a task to another stage of the same project and recomputes both stages.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				t, err := a.visibleTask(args[0])
				if err != nil {
					return err
				}
				edit := *t
				edit.StageID = args[1]
				edit.Order = order
				moved, err := a.store.UpdateTask(edit)
				if moved == nil {
					return err
				}
				fmt.Fprintf(out, "Moved task %s\n", moved.Title)
				printAggregates(out, a, moved)
				return err
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&order, "order", 0, "position within the new stage (default: last)")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleTask(args[0]); err != nil {
					return err
				}
				if err := a.store.DeleteTask(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted task %s\n", args[0])
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
