package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/announce"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/state"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectCancelCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	cmd.AddCommand(newProjectShareCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		client      string
		value       float64
		start, end  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Long:  "Creates a project managed by the logged-in manager. It starts pending at 0%.",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				p := models.Project{
					Title:       title,
					Description: description,
					Value:       value,
					StartDate:   startDate,
					EndDate:     endDate,
				}
				if client != "" {
					u, err := a.userByEmail(client)
					if err != nil {
						return err
					}
					p.ClientID = u.ID
				}
				created, err := a.store.AddProject(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created project %s: %s\n", created.ID, created.Title)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "project title (required)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&client, "client", "", "client email")
	cmd.Flags().Float64Var(&value, "value", 0, "contract value")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		search     string
		sortField  string
		desc       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		Long:  "Lists the projects the logged-in user manages or commissioned, with optional status filter, search and sort.",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := state.Query{
				Status: models.Status(status),
				Search: search,
				Sort:   state.SortOptions{Field: state.SortField(sortField), Desc: desc},
			}
			if q.Status != "" && q.Status != state.FilterAll && !q.Status.Valid() {
				return fmt.Errorf("--status must be one of all, pending, in_progress, completed, cancelled")
			}
			if !q.Sort.Field.Valid() {
				return fmt.Errorf("--sort must be one of title, start_date, end_date, value, progress, updated_at")
			}
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireLogin(); err != nil {
					return err
				}
				projects := a.store.QueryProjects(q)
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tCLIENT\tVALUE")
				for _, p := range projects {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						p.ID, truncate(p.Title, 40), p.Status, progressBar(p.Progress, 10),
						orDash(p.ClientName), formatMoney(p.Value))
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status (all, pending, in_progress, completed, cancelled)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive search over title, description, client and manager")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort by title, start_date, end_date, value, progress or updated_at")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show project details",
		Long:  "Displays a project with its stages and tasks in order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				p, err := a.visibleProject(args[0])
				if err != nil {
					return err
				}
				printProject(out, a.store, p)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printProject(out io.Writer, s *state.Store, p *models.Project) {
	fmt.Fprintf(out, "Project:     %s\n", p.Title)
	fmt.Fprintf(out, "ID:          %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(out, "Status:      %s\n", p.Status.Label())
	fmt.Fprintf(out, "Progress:    %s\n", progressBar(p.Progress, 20))
	fmt.Fprintf(out, "Manager:     %s\n", orDash(p.ManagerName))
	fmt.Fprintf(out, "Client:      %s\n", orDash(p.ClientName))
	fmt.Fprintf(out, "Value:       %s\n", formatMoney(p.Value))
	fmt.Fprintf(out, "Dates:       %s → %s\n", formatDate(p.StartDate), formatDate(p.EndDate))

	stages := s.Stages(p.ID)
	if len(stages) == 0 {
		fmt.Fprintln(out, "\nNo stages yet.")
		return
	}
	for _, st := range stages {
		fmt.Fprintf(out, "\n%d. %s  %s  %s  (%s)\n", st.Order, st.Title, progressBar(st.Progress, 10), st.Status.Label(), st.ID)
		for _, t := range s.Tasks(st.ID) {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			fmt.Fprintf(out, "   [%s] %s  (%s)\n", mark, t.Title, t.ID)
		}
	}
}

func newProjectCancelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a project",
		Long:  "Moves a project to cancelled. A cancelled project stays cancelled.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleProject(args[0]); err != nil {
					return err
				}
				p, err := a.store.CancelProject(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Project %s is %s\n", p.Title, p.Status.Label())
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newProjectDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Long:  "Deletes a project record. Its stages and tasks are not removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if _, err := a.requireManager(); err != nil {
					return err
				}
				if _, err := a.visibleProject(args[0]); err != nil {
					return err
				}
				if err := a.store.DeleteProject(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted project %s\n", args[0])
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newProjectShareCmd() *cobra.Command {
	var (
		configPath string
		whatsapp   bool
		phone      string
		stageID    string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "share <id>",
		Short: "Print shareable project text",
		Long:  "Prints a plain-text project summary, or with --whatsapp a stage update message and its wa.me link.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				p, err := a.visibleProject(args[0])
				if err != nil {
					return err
				}
				if !whatsapp {
					fmt.Fprintln(out, announce.ShareText(*p))
					return nil
				}
				stageTitle := ""
				if stageID != "" {
					st, err := a.store.Stage(stageID)
					if err != nil {
						return err
					}
					stageTitle = st.Title
				} else if stages := a.store.Stages(p.ID); len(stages) > 0 {
					stageTitle = stages[len(stages)-1].Title
					for _, st := range stages {
						if st.Status != models.StatusCompleted {
							stageTitle = st.Title
							break
						}
					}
				}
				if baseURL == "" {
					baseURL = a.cfg.Dashboard.BaseURL
				}
				if baseURL == "" {
					baseURL = fmt.Sprintf("http://localhost:%d", a.cfg.Dashboard.Port)
				}
				msg := announce.WhatsAppMessage(p.Title, stageTitle, announce.ProjectLink(baseURL, p.ID))
				fmt.Fprintln(out, msg)
				fmt.Fprintln(out)
				fmt.Fprintln(out, announce.WhatsAppURL(phone, msg))
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&whatsapp, "whatsapp", false, "print a WhatsApp message and link")
	cmd.Flags().StringVar(&phone, "phone", "", "recipient phone number for the WhatsApp link")
	cmd.Flags().StringVar(&stageID, "stage", "", "stage the update is about (default: first unfinished stage)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "dashboard URL used in the project link")
	return cmd
}
