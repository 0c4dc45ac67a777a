package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/dashboard"
	"github.com/stageboard/stageboard/internal/metrics"
	"github.com/stageboard/stageboard/internal/reconcile"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard and JSON API",
		Long: `Starts the HTTP API with live progress events. Chat announcements are
delivered in the background, and when reconcile.schedule is set every
aggregate is recomputed on that cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: dashboard.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Dashboard.Port
	}
	if a.cfg.Reconcile.Schedule != "" {
		if err := reconcile.ValidateSchedule(a.cfg.Reconcile.Schedule); err != nil {
			return err
		}
	}

	var rec *metrics.Recorder
	if a.cfg.Metrics.Enabled {
		rec = metrics.NewRecorder(nil)
		a.coord.AddListener(rec)
	}
	broadcaster := dashboard.NewBroadcaster()
	a.coord.AddListener(broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.announcer != nil {
		go a.announcer.Run(ctx)
	}
	if a.cfg.Reconcile.Schedule != "" {
		go func() {
			if err := reconcile.Start(ctx, a.store, a.cfg.Reconcile.Schedule, a.log); err != nil {
				a.log.Error().Err(err).Msg("reconcile stopped")
			}
		}()
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		Store:   a.store,
		Port:    port,
		Out:     cmd.OutOrStdout(),
		Logger:  a.log,
		Metrics: rec,
		Events:  broadcaster,
		BaseURL: a.cfg.Dashboard.BaseURL,
	})
}
