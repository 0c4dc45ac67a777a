package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  dsn: "root@tcp(10.0.0.5:3307)/stageboard?parseTime=true"

session:
  backend: redis
  redis:
    addr: 10.0.0.6:6380
    db: 2
    key: sb:user

dashboard:
  port: 9090

log:
  level: debug
  format: json

auth:
  verify_password: true

propagation:
  automatic: false
  cancelled_projects: track
  freeze_cancelled_stages: true

reconcile:
  schedule: "*/15 * * * *"

announce:
  slack:
    token: xoxb-123
    channel: C01
  discord:
    token: abc
    channel: "998877"

events:
  nats_url: nats://127.0.0.1:4222

metrics:
  enabled: true
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if !strings.Contains(cfg.Database.DSN, "10.0.0.5:3307") {
		t.Errorf("Database.DSN = %q, want to contain host:port", cfg.Database.DSN)
	}
	if cfg.Session.Backend != "redis" {
		t.Errorf("Session.Backend = %q, want %q", cfg.Session.Backend, "redis")
	}
	if cfg.Session.Redis.Addr != "10.0.0.6:6380" {
		t.Errorf("Session.Redis.Addr = %q, want %q", cfg.Session.Redis.Addr, "10.0.0.6:6380")
	}
	if cfg.Session.Redis.DB != 2 {
		t.Errorf("Session.Redis.DB = %d, want 2", cfg.Session.Redis.DB)
	}
	if cfg.Session.Redis.Key != "sb:user" {
		t.Errorf("Session.Redis.Key = %q, want %q", cfg.Session.Redis.Key, "sb:user")
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("Dashboard.Port = %d, want 9090", cfg.Dashboard.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if !cfg.Auth.VerifyPassword {
		t.Error("Auth.VerifyPassword = false, want true")
	}
	if cfg.Propagation.AutomaticPropagation() {
		t.Error("AutomaticPropagation() = true, want false")
	}
	if cfg.Propagation.CancelledProjects != CancelledTrack {
		t.Errorf("CancelledProjects = %q, want %q", cfg.Propagation.CancelledProjects, CancelledTrack)
	}
	if !cfg.Propagation.FreezeCancelledStages {
		t.Error("FreezeCancelledStages = false, want true")
	}
	if cfg.Reconcile.Schedule != "*/15 * * * *" {
		t.Errorf("Reconcile.Schedule = %q", cfg.Reconcile.Schedule)
	}
	if !cfg.Announce.Slack.Enabled() || !cfg.Announce.Discord.Enabled() {
		t.Error("both announce targets should be enabled")
	}
	if cfg.Events.Subject != "stageboard.progress" {
		t.Errorf("Events.Subject = %q, want default %q", cfg.Events.Subject, "stageboard.progress")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "stageboard.db" {
		t.Errorf("Database.Path = %q, want stageboard.db", cfg.Database.Path)
	}
	if cfg.Session.Backend != "file" {
		t.Errorf("Session.Backend = %q, want file", cfg.Session.Backend)
	}
	if cfg.Session.Path == "" {
		t.Error("Session.Path should default for the file backend")
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d, want 8080", cfg.Dashboard.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v, want info/console", cfg.Log)
	}
	if !cfg.Propagation.AutomaticPropagation() {
		t.Error("AutomaticPropagation() should default to true")
	}
	if cfg.Propagation.CancelledProjects != CancelledFreeze {
		t.Errorf("CancelledProjects = %q, want %q", cfg.Propagation.CancelledProjects, CancelledFreeze)
	}
	if cfg.Auth.VerifyPassword {
		t.Error("VerifyPassword should default to false")
	}
	if cfg.Events.Subject != "" {
		t.Errorf("Events.Subject = %q, want empty without nats_url", cfg.Events.Subject)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown driver", "database:\n  driver: oracle\n", "database.driver"},
		{"mysql without dsn", "database:\n  driver: mysql\n", "database.dsn is required"},
		{"postgres without dsn", "database:\n  driver: postgres\n", "database.dsn is required"},
		{"unknown session backend", "session:\n  backend: cookie\n", "session.backend"},
		{"bad port", "dashboard:\n  port: 70000\n", "dashboard.port"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"bad cancelled policy", "propagation:\n  cancelled_projects: thaw\n", "cancelled_projects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\nsession:\n  backend: cookie\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("error = %q, want joined messages", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("STAGEBOARD_DB_PATH", "/tmp/override.db")
	t.Setenv("STAGEBOARD_PORT", "7070")
	t.Setenv("STAGEBOARD_LOG_LEVEL", "warn")
	t.Setenv("STAGEBOARD_REDIS_ADDR", "redis:6379")
	t.Setenv("STAGEBOARD_BASE_URL", "https://board.example.com")

	cfg, err := Parse([]byte("database:\n  path: file.db\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dashboard.BaseURL != "https://board.example.com" {
		t.Errorf("Dashboard.BaseURL = %q, want env override", cfg.Dashboard.BaseURL)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Dashboard.Port != 7070 {
		t.Errorf("Dashboard.Port = %d, want 7070", cfg.Dashboard.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Session.Redis.Addr != "redis:6379" {
		t.Errorf("Session.Redis.Addr = %q, want redis:6379", cfg.Session.Redis.Addr)
	}
}

func TestParse_EnvDriverOverride(t *testing.T) {
	t.Setenv("STAGEBOARD_DB_DRIVER", "postgres")
	t.Setenv("STAGEBOARD_DB_DSN", "postgres://localhost/sb")

	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/sb" {
		t.Errorf("Database = %+v, want env postgres settings", cfg.Database)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stageboard.yaml")
	if err := os.WriteFile(path, []byte("dashboard:\n  port: 8181\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dashboard.Port != 8181 {
		t.Errorf("Dashboard.Port = %d, want 8181", cfg.Dashboard.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestChatTarget_Enabled(t *testing.T) {
	if (ChatTarget{Token: "x"}).Enabled() {
		t.Error("target without channel should be disabled")
	}
	if !(ChatTarget{Token: "x", Channel: "y"}).Enabled() {
		t.Error("target with token and channel should be enabled")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d, want 8080", cfg.Dashboard.Port)
	}
}
