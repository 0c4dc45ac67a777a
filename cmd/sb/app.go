package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stageboard/stageboard/internal/announce"
	"github.com/stageboard/stageboard/internal/announce/discord"
	"github.com/stageboard/stageboard/internal/announce/slack"
	"github.com/stageboard/stageboard/internal/config"
	"github.com/stageboard/stageboard/internal/db"
	"github.com/stageboard/stageboard/internal/events"
	"github.com/stageboard/stageboard/internal/logging"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
	"github.com/stageboard/stageboard/internal/session"
	"github.com/stageboard/stageboard/internal/state"
	"github.com/stageboard/stageboard/internal/store"
	"gorm.io/gorm"
)

// app is everything a command needs: config, logger, database and a
// loaded Store with its recompute listeners attached.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	db        *gorm.DB
	store     *state.Store
	coord     *propagate.Coordinator
	announcer *announce.Announcer
	events    *events.Publisher
}

// loadConfig reads the config file and builds the logger. Logs go to
// stderr so command output stays clean.
func loadConfig(cmd *cobra.Command, configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// openApp loads config, connects to the database, wires the optional
// announce and events listeners and loads the Store.
func openApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, log, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	sess, err := session.New(cfg.Session)
	if err != nil {
		return nil, err
	}

	projects := store.NewProjects(gormDB)
	stages := store.NewStages(gormDB)
	tasks := store.NewTasks(gormDB)
	coord := propagate.New(propagate.Opts{
		Tasks:    tasks,
		Stages:   stages,
		Projects: projects,
		Policy: propagate.Policy{
			TrackCancelledProgress: cfg.Propagation.CancelledProjects == config.CancelledTrack,
			FreezeCancelledStages:  cfg.Propagation.FreezeCancelledStages,
		},
		Logger: log,
	})

	a := &app{cfg: cfg, log: log, db: gormDB, coord: coord}

	adapters, err := buildAdapters(cfg.Announce)
	if err != nil {
		return nil, err
	}
	if len(adapters) > 0 {
		a.announcer = announce.New(announce.Opts{Adapters: adapters, Logger: log})
		coord.AddListener(a.announcer)
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject, log)
		if err != nil {
			// Events are best effort; the command still runs.
			log.Warn().Err(err).Msg("events disabled")
		} else {
			a.events = pub
			coord.AddListener(pub)
		}
	}

	a.store = state.New(state.Opts{
		Users:          store.NewUsers(gormDB),
		Projects:       projects,
		Stages:         stages,
		Tasks:          tasks,
		Session:        sess,
		Coordinator:    coord,
		Automatic:      cfg.Propagation.AutomaticPropagation(),
		VerifyPassword: cfg.Auth.VerifyPassword,
		Logger:         log,
	})
	if err := a.store.Load(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// buildAdapters creates a chat adapter for every configured target.
func buildAdapters(cfg config.AnnounceConfig) ([]announce.Adapter, error) {
	var adapters []announce.Adapter
	if cfg.Slack.Enabled() {
		a, err := slack.New(slack.AdapterOpts{BotToken: cfg.Slack.Token, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.Discord.Enabled() {
		a, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.Token, ChannelID: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// Close delivers pending announcements and releases connections.
func (a *app) Close() error {
	var errs []error
	if a.announcer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.announcer.Flush(ctx); err != nil {
			a.log.Warn().Err(err).Msg("announcements not delivered")
		}
		cancel()
		errs = append(errs, a.announcer.Close())
	}
	if a.events != nil {
		a.events.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// requireLogin returns the logged-in user or an error telling the user to
// run sb login.
func (a *app) requireLogin() (*models.User, error) {
	u := a.store.CurrentUser()
	if u == nil {
		return nil, fmt.Errorf("not logged in (run: sb login <email>)")
	}
	return u, nil
}

// requireManager returns the logged-in user when that user is a manager.
func (a *app) requireManager() (*models.User, error) {
	u, err := a.requireLogin()
	if err != nil {
		return nil, err
	}
	if !u.IsManager() {
		return nil, fmt.Errorf("%s is a client; only managers can change projects", u.Email)
	}
	return u, nil
}

// visibleProject returns a project the logged-in user takes part in.
func (a *app) visibleProject(id string) (*models.Project, error) {
	if _, err := a.requireLogin(); err != nil {
		return nil, err
	}
	for _, p := range a.store.VisibleProjects() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
}

// userByEmail finds a registered user by email.
func (a *app) userByEmail(email string) (*models.User, error) {
	for _, u := range a.store.Users() {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("no user with email %s", email)
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, configPath string, fn func(a *app, out io.Writer) error) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, cmd.OutOrStdout())
}
