package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/models"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
		role       string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a manager or client",
		Long:  "Registers a new user. Without --password you are prompted for one; an empty password leaves the account without one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.Role(role).Valid() {
				return fmt.Errorf("--role must be manager or client, got %q", role)
			}
			if !cmd.Flags().Changed("password") {
				pw, err := readPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = pw
			}
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				u, err := a.store.Register(name, email, password, models.Role(role))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Registered %s %s <%s> (%s)\n", u.Role, u.Name, u.Email, u.ID)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleClient), "manager or client")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				users := a.store.Users()
				if len(users) == 0 {
					fmt.Fprintln(out, "No users found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
				}
				return w.Flush()
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// readPassword prompts on stderr and reads without echo from a terminal,
// or reads one line from a non-terminal stdin.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
