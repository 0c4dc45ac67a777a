package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		seed       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Stageboard database",
		Long:  "Creates the database when the driver supports it, migrates all tables and optionally seeds sample users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, seed)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&seed, "seed", false, "create sample manager and client accounts in an empty database")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string, seed bool) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded config from %s (driver %s)\n", configPath, cfg.Database.Driver)

	if err := db.EnsureDatabase(cfg.Database); err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if seed {
		n, err := db.SeedUsers(gormDB, db.DefaultSampleUsers)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(out, "Users already present, skipped seeding")
		} else {
			fmt.Fprintf(out, "Seeded %d sample users\n", n)
			for _, u := range db.DefaultSampleUsers {
				fmt.Fprintf(out, "  %-8s %s (password %q)\n", u.Role, u.Email, u.Password)
			}
		}
	}

	fmt.Fprintln(out, "Database ready")
	return nil
}
