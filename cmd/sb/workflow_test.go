package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// cli runs sb commands against a sqlite database and session file in a
// temp dir.
type cli struct {
	configPath string
}

func newCLI(t *testing.T, extra string) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
session:
  backend: file
  path: %s
log:
  level: error
dashboard:
  base_url: https://board.example.com
%s`, filepath.Join(dir, "stageboard.db"), filepath.Join(dir, "session.json"), extra)
	path := filepath.Join(dir, "stageboard.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c := &cli{configPath: path}
	c.run(t, "db", "init", "--seed")
	return c
}

func (c *cli) exec(args ...string) (string, error) {
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append(args, "--config", c.configPath))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.exec(args...)
	if err != nil {
		t.Fatalf("sb %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func firstID(t *testing.T, out string) string {
	t.Helper()
	id := idPattern.FindString(out)
	if id == "" {
		t.Fatalf("no id in output: %s", out)
	}
	return id
}

func TestWorkflow_ProgressRollsUp(t *testing.T) {
	c := newCLI(t, "")

	if out := c.run(t, "whoami"); !strings.Contains(out, "Not logged in") {
		t.Errorf("whoami = %q", out)
	}
	out := c.run(t, "login", "joao@empresa.com")
	if !strings.Contains(out, "Logged in as Joao Silva (manager)") {
		t.Errorf("login = %q", out)
	}

	projectID := firstID(t, c.run(t, "project", "create",
		"--title", "Website", "--client", "maria@cliente.com", "--value", "12000", "--start", "2025-03-01"))
	stageID := firstID(t, c.run(t, "stage", "add", projectID, "--title", "Design"))
	c.run(t, "task", "add", stageID, "--title", "Wireframes", "--done")
	taskID := firstID(t, c.run(t, "task", "add", stageID, "--title", "Mockups"))

	out = c.run(t, "project", "list")
	for _, want := range []string{"Website", "in_progress", " 50%", "Maria Santos", "12,000.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("project list missing %q:\n%s", want, out)
		}
	}

	out = c.run(t, "task", "toggle", taskID)
	if !strings.Contains(out, "Task Mockups is done") || !strings.Contains(out, "100%") {
		t.Errorf("toggle = %q", out)
	}

	out = c.run(t, "project", "show", projectID)
	for _, want := range []string{"Project:     Website", "Completed", "[x] Wireframes", "[x] Mockups", "2025-03-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("project show missing %q:\n%s", want, out)
		}
	}

	out = c.run(t, "stats")
	if !strings.Contains(out, "Completed:   1") {
		t.Errorf("stats = %s", out)
	}
	out = c.run(t, "project", "list", "--status", "pending")
	if !strings.Contains(out, "No projects found.") {
		t.Errorf("pending list = %s", out)
	}
}

func TestWorkflow_ShareAndCancel(t *testing.T) {
	c := newCLI(t, "")
	c.run(t, "login", "joao@empresa.com")
	projectID := firstID(t, c.run(t, "project", "create", "--title", "Mobile App"))
	c.run(t, "stage", "add", projectID, "--title", "Build")

	out := c.run(t, "project", "share", projectID)
	if !strings.Contains(out, "Project: Mobile App") || !strings.Contains(out, "Progress: 0%") {
		t.Errorf("share = %s", out)
	}
	out = c.run(t, "project", "share", projectID, "--whatsapp", "--phone", "+55 11 98765-4321")
	for _, want := range []string{"Stage: Build", "https://board.example.com/projects/" + projectID, "https://wa.me/5511987654321?text="} {
		if !strings.Contains(out, want) {
			t.Errorf("whatsapp share missing %q:\n%s", want, out)
		}
	}

	out = c.run(t, "project", "cancel", projectID)
	if !strings.Contains(out, "Cancelled") {
		t.Errorf("cancel = %s", out)
	}
	c.run(t, "project", "delete", projectID)
	if _, err := c.exec("project", "show", projectID); err == nil {
		t.Error("show after delete succeeded")
	}
}

func TestWorkflow_ClientIsReadOnly(t *testing.T) {
	c := newCLI(t, "")
	c.run(t, "login", "joao@empresa.com")
	projectID := firstID(t, c.run(t, "project", "create", "--title", "Website", "--client", "maria@cliente.com"))
	c.run(t, "project", "create", "--title", "Internal tooling")

	c.run(t, "login", "maria@cliente.com")
	out := c.run(t, "project", "list")
	if !strings.Contains(out, "Website") || strings.Contains(out, "Internal tooling") {
		t.Errorf("client list = %s", out)
	}
	if _, err := c.exec("stage", "add", projectID, "--title", "Design"); err == nil {
		t.Error("client added a stage")
	}
	if _, err := c.exec("project", "create", "--title", "Mine"); err == nil {
		t.Error("client created a project")
	}

	c.run(t, "logout")
	if _, err := c.exec("project", "list"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("list logged out err = %v", err)
	}
}

func TestWorkflow_ManualPropagationAndReconcile(t *testing.T) {
	c := newCLI(t, "propagation:\n  automatic: false\n")
	c.run(t, "login", "joao@empresa.com")
	projectID := firstID(t, c.run(t, "project", "create", "--title", "Website"))
	stageID := firstID(t, c.run(t, "stage", "add", projectID, "--title", "Design"))
	c.run(t, "task", "add", stageID, "--title", "Wireframes", "--done")

	if out := c.run(t, "stage", "list", projectID); !strings.Contains(out, "  0%") {
		t.Errorf("stage recomputed without propagation:\n%s", out)
	}

	out := c.run(t, "reconcile")
	if !strings.Contains(out, "Checked 1 projects and 1 stages, 2 updated") {
		t.Errorf("reconcile = %s", out)
	}
	if out := c.run(t, "stage", "list", projectID); !strings.Contains(out, "100%") || !strings.Contains(out, "1/1") {
		t.Errorf("stage after reconcile:\n%s", out)
	}
	if out := c.run(t, "reconcile"); !strings.Contains(out, "0 updated") {
		t.Errorf("second reconcile = %s", out)
	}
}

func TestWorkflow_MoveTask(t *testing.T) {
	c := newCLI(t, "")
	c.run(t, "login", "joao@empresa.com")
	projectID := firstID(t, c.run(t, "project", "create", "--title", "Website"))
	design := firstID(t, c.run(t, "stage", "add", projectID, "--title", "Design"))
	build := firstID(t, c.run(t, "stage", "add", projectID, "--title", "Build"))
	c.run(t, "task", "add", design, "--title", "Wireframes", "--done")
	taskID := firstID(t, c.run(t, "task", "add", design, "--title", "Mockups"))

	c.run(t, "task", "move", taskID, build)

	if out := c.run(t, "task", "list", build); !strings.Contains(out, "Mockups") {
		t.Errorf("build tasks = %s", out)
	}
	out := c.run(t, "stage", "list", projectID)
	if !strings.Contains(out, "100%") || !strings.Contains(out, "  0%") {
		t.Errorf("stages after move:\n%s", out)
	}
	c.run(t, "task", "delete", taskID)
	c.run(t, "stage", "delete", build)
	if out := c.run(t, "stage", "list", projectID); strings.Contains(out, "Build") {
		t.Errorf("deleted stage listed:\n%s", out)
	}
}

func TestWorkflow_UserAdd(t *testing.T) {
	c := newCLI(t, "")
	out := c.run(t, "user", "add", "--name", "Ana Costa", "--email", "ana@empresa.com", "--role", "manager", "--password", "secret")
	if !strings.Contains(out, "Registered manager Ana Costa") {
		t.Errorf("user add = %s", out)
	}
	out = c.run(t, "user", "list")
	for _, want := range []string{"Ana Costa", "Joao Silva", "Maria Santos"} {
		if !strings.Contains(out, want) {
			t.Errorf("user list missing %q:\n%s", want, out)
		}
	}
	if _, err := c.exec("user", "add", "--name", "X", "--email", "x@example.com", "--role", "admin", "--password", "p"); err == nil {
		t.Error("unknown role accepted")
	}
}
