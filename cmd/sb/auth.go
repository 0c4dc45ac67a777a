package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in as a registered user",
		Long:  "Logs in and remembers the user in the configured session backend. The password is only checked when auth.verify_password is on.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				if a.cfg.Auth.VerifyPassword && !cmd.Flags().Changed("password") {
					pw, err := readPassword(cmd, "Password: ")
					if err != nil {
						return err
					}
					password = pw
				}
				u, err := a.store.Login(args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Logged in as %s (%s)\n", u.Name, u.Role)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when verification is on)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				a.store.Logout()
				fmt.Fprintln(out, "Logged out")
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, configPath, func(a *app, out io.Writer) error {
				u := a.store.CurrentUser()
				if u == nil {
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				fmt.Fprintf(out, "%s <%s> (%s)\n", u.Name, u.Email, u.Role)
				return nil
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
