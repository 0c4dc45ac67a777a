// Package config provides YAML-based configuration loading for Stageboard.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cancelled-project policies for progress recomputation.
const (
	// CancelledFreeze leaves a cancelled project untouched.
	CancelledFreeze = "freeze"
	// CancelledTrack keeps refreshing progress while the status stays cancelled.
	CancelledTrack = "track"
)

// Config is the top-level Stageboard configuration, loaded from stageboard.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Propagation PropagationConfig `yaml:"propagation"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Announce    AnnounceConfig    `yaml:"announce"`
	Events      EventsConfig      `yaml:"events"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DatabaseConfig selects the gorm driver and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	Path   string `yaml:"path"`   // sqlite file, ":memory:" allowed
	DSN    string `yaml:"dsn"`    // mysql/postgres
}

// SessionConfig selects where the logged-in user is remembered.
type SessionConfig struct {
	Backend string      `yaml:"backend"` // file, redis, memory
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// DashboardConfig configures the HTTP API.
type DashboardConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // used in share links
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// AuthConfig controls the login policy.
type AuthConfig struct {
	// VerifyPassword turns on bcrypt checking. Off by default: any password
	// is accepted for an existing email.
	VerifyPassword bool `yaml:"verify_password"`
}

// PropagationConfig controls when and how aggregates are recomputed.
type PropagationConfig struct {
	Automatic             *bool  `yaml:"automatic"`
	CancelledProjects     string `yaml:"cancelled_projects"`
	FreezeCancelledStages bool   `yaml:"freeze_cancelled_stages"`
}

// ReconcileConfig schedules the background recompute sweep in serve mode.
type ReconcileConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron; empty disables
}

// AnnounceConfig lists chat targets for status transition announcements.
type AnnounceConfig struct {
	Slack   ChatTarget `yaml:"slack"`
	Discord ChatTarget `yaml:"discord"`
}

// ChatTarget is a bot token plus the channel to post to.
type ChatTarget struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Enabled reports whether both token and channel are set.
func (c ChatTarget) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// EventsConfig configures NATS publishing of progress events.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AutomaticPropagation reports whether task mutations recompute aggregates
// without an explicit call. Defaults to true.
func (p PropagationConfig) AutomaticPropagation() bool {
	return p.Automatic == nil || *p.Automatic
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration for a local sqlite file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

// applyEnv overrides file values with STAGEBOARD_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("STAGEBOARD_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("STAGEBOARD_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("STAGEBOARD_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("STAGEBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Dashboard.Port = port
		}
	}
	if v := os.Getenv("STAGEBOARD_BASE_URL"); v != "" {
		c.Dashboard.BaseURL = v
	}
	if v := os.Getenv("STAGEBOARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STAGEBOARD_REDIS_ADDR"); v != "" {
		c.Session.Redis.Addr = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "stageboard.db"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "file"
	}
	if c.Session.Backend == "file" && c.Session.Path == "" {
		c.Session.Path = ".stageboard-session.json"
	}
	if c.Session.Redis.Addr == "" {
		c.Session.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Session.Redis.Key == "" {
		c.Session.Redis.Key = "stageboard:current_user"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Propagation.CancelledProjects == "" {
		c.Propagation.CancelledProjects = CancelledFreeze
	}
	if c.Events.NATSURL != "" && c.Events.Subject == "" {
		c.Events.Subject = "stageboard.progress"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Sprintf("database.dsn is required for driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	switch c.Session.Backend {
	case "file", "redis", "memory":
	default:
		errs = append(errs, fmt.Sprintf("session.backend %q is not one of file, redis, memory", c.Session.Backend))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of console, json", c.Log.Format))
	}
	switch c.Propagation.CancelledProjects {
	case CancelledFreeze, CancelledTrack:
	default:
		errs = append(errs, fmt.Sprintf("propagation.cancelled_projects %q is not one of freeze, track", c.Propagation.CancelledProjects))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
